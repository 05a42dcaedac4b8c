package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tufnapp/tufngate/metrics"
)

// MetricsProvider is what the metrics routes read from.
type MetricsProvider interface {
	GetSnapshot() *metrics.Snapshot
	Handler() http.Handler // Prometheus exposition
}

// MetricsHandler serves the JSON summary behind the dashboard.
// ?top=N trims the per-key table.
type MetricsHandler struct {
	provider MetricsProvider
}

func NewMetricsHandler(provider MetricsProvider) *MetricsHandler {
	return &MetricsHandler{provider: provider}
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.provider.GetSnapshot()
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "top must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n < len(snap.TopClients) {
			snap.TopClients = snap.TopClients[:n]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(snap)
}
