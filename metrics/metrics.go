// Package metrics counts gate decisions, submissions and sweeps. Counters
// are exported to Prometheus and summarized as a JSON snapshot for the
// dashboard.
package metrics

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// topClientLimit caps Snapshot.TopClients.
const topClientLimit = 10

// Metrics tracks gate statistics. It satisfies tufngate.Recorder.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	blockedRequests atomic.Int64
	sweeps          atomic.Int64
	sweptKeys       atomic.Int64

	// Per-key and per-outcome stats
	mu          sync.RWMutex
	clientStats map[string]*ClientStats
	outcomes    map[string]int64
	startTime   time.Time
	now         func() time.Time

	registry    *prometheus.Registry
	decisions   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	sweepRuns   *prometheus.CounterVec
	sweepKeys   prometheus.Counter
}

// ClientStats tracks rate limit decisions for one key
type ClientStats struct {
	Key             string    `json:"key"`
	TotalRequests   int64     `json:"total_requests"`
	AllowedRequests int64     `json:"allowed_requests"`
	BlockedRequests int64     `json:"blocked_requests"`
	FirstRequestAt  time.Time `json:"first_request_at"`
	LastRequestAt   time.Time `json:"last_request_at"`
}

// New creates a tracker with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		clientStats: make(map[string]*ClientStats),
		outcomes:    make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		registry:    prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tufngate",
			Name:      "decisions_total",
			Help:      "Gate decisions by check and result.",
		}, []string{"check", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tufngate",
			Name:      "submissions_total",
			Help:      "Form submissions by form and outcome.",
		}, []string{"form", "outcome"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tufngate",
			Name:      "sweeps_total",
			Help:      "Sweep runs by result.",
		}, []string{"result"}),
		sweepKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tufngate",
			Name:      "swept_keys_total",
			Help:      "Rate windows removed by the sweep.",
		}),
	}
	m.registry.MustRegister(
		m.decisions, m.submissions, m.sweepRuns, m.sweepKeys,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordDecision records one cooldown or rate limit check. Per-key stats
// are kept for keyed checks only.
func (m *Metrics) RecordDecision(check, key string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "blocked"
	}
	m.decisions.WithLabelValues(check, result).Inc()

	m.totalRequests.Add(1)
	if allowed {
		m.allowedRequests.Add(1)
	} else {
		m.blockedRequests.Add(1)
	}

	if key == "" {
		return
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, exists := m.clientStats[key]
	if !exists {
		stats = &ClientStats{Key: key, FirstRequestAt: now}
		m.clientStats[key] = stats
	}
	stats.TotalRequests++
	if allowed {
		stats.AllowedRequests++
	} else {
		stats.BlockedRequests++
	}
	stats.LastRequestAt = now
}

// RecordSubmission records how a form submission ended.
func (m *Metrics) RecordSubmission(form, outcome string) {
	m.submissions.WithLabelValues(form, outcome).Inc()

	m.mu.Lock()
	m.outcomes[form+"/"+outcome]++
	m.mu.Unlock()
}

// RecordSweep records one sweep run.
func (m *Metrics) RecordSweep(removed int, err error) {
	if err != nil {
		m.sweepRuns.WithLabelValues("error").Inc()
		return
	}
	m.sweepRuns.WithLabelValues("ok").Inc()
	m.sweepKeys.Add(float64(removed))
	m.sweeps.Add(1)
	m.sweptKeys.Add(int64(removed))
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Snapshot represents a point-in-time view of metrics
type Snapshot struct {
	TotalRequests   int64            `json:"total_requests"`
	AllowedRequests int64            `json:"allowed_requests"`
	BlockedRequests int64            `json:"blocked_requests"`
	UniqueClients   int64            `json:"unique_clients"`
	TopClients      []*ClientStats   `json:"top_clients"`
	Submissions     map[string]int64 `json:"submissions"`
	Sweeps          int64            `json:"sweeps"`
	SweptKeys       int64            `json:"swept_keys"`
	UptimeSeconds   int64            `json:"uptime_seconds"`
	StartTime       time.Time        `json:"start_time"`
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	top := make([]*ClientStats, 0, len(m.clientStats))
	for _, stats := range m.clientStats {
		cp := *stats
		top = append(top, &cp)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalRequests != top[j].TotalRequests {
			return top[i].TotalRequests > top[j].TotalRequests
		}
		return top[i].Key < top[j].Key
	})
	if len(top) > topClientLimit {
		top = top[:topClientLimit]
	}

	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}

	return &Snapshot{
		TotalRequests:   m.totalRequests.Load(),
		AllowedRequests: m.allowedRequests.Load(),
		BlockedRequests: m.blockedRequests.Load(),
		UniqueClients:   int64(len(m.clientStats)),
		TopClients:      top,
		Submissions:     outcomes,
		Sweeps:          m.sweeps.Load(),
		SweptKeys:       m.sweptKeys.Load(),
		UptimeSeconds:   int64(m.now().Sub(m.startTime).Seconds()),
		StartTime:       m.startTime,
	}
}
