// Package api is the HTTP surface of the hosted endpoint: the PostgREST
// shaped write paths the site posts to, the download catalog, health and
// metrics.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/backend/rest"
	"github.com/tufnapp/tufngate/downloads"
	"github.com/tufnapp/tufngate/forms"
	"github.com/tufnapp/tufngate/middleware"
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

// Deps are the router's collaborators.
type Deps struct {
	Backend      backend.Store
	Gate         *tufngate.Gate
	Catalog      *downloads.Catalog
	Metrics      MetricsProvider // optional
	Logger       *zap.Logger     // optional
	MaxBodyBytes int64
	APIKeys      map[string]struct{}
	Now          func() time.Time // optional
	Dashboard    http.Handler     // optional, served at / and /dashboard
}

// WriteRoutes maps the write paths to their form policies.
var WriteRoutes = map[string]forms.Kind{
	http.MethodPost + " " + rest.PathWaitlist: forms.KindWaitlist,
	http.MethodPost + " " + rest.PathReviews:  forms.KindReview,
	http.MethodPost + " " + rest.PathFeedback: forms.KindFeedback,
}

// NewRouter builds the chi router.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Backend == nil || d.Gate == nil {
		return nil, fmt.Errorf("%w: router needs a backend and a gate", tufngate.ErrInvalidConfig)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Catalog == nil {
		d.Catalog = downloads.NewCatalog("")
	}
	if d.Now == nil {
		d.Now = d.Gate.Now
	}

	limiter, err := middleware.NewRateLimiter(middleware.Config{
		Gate:  d.Gate,
		Route: middleware.StaticRoutes(WriteRoutes),
	})
	if err != nil {
		return nil, err
	}

	h := &Handler{
		store:   d.Backend,
		config:  d.Gate.Config(),
		catalog: d.Catalog,
		logger:  d.Logger.Named("api"),
		now:     d.Now,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(h.logger))

	if d.Dashboard != nil {
		r.Method(http.MethodGet, "/", d.Dashboard)
		r.Method(http.MethodGet, "/dashboard", d.Dashboard)
	}

	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)

	r.Get("/downloads", h.HandleDownloads)
	r.Get("/downloads/{os}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleDownload(w, r, chi.URLParam(r, "os"))
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
		r.Handle("/metrics/summary", NewMetricsHandler(d.Metrics))
	}

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(d.APIKeys))
		r.Get("/waitlist_count", h.HandleCount)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BodyLimit(d.MaxBodyBytes))
			r.Use(middleware.RequireJSON)
			r.Use(limiter.Middleware)
			r.Post("/waitlist", h.HandleSignup)
			r.Post("/reviews", h.HandleReview)
			r.Post("/feedback", h.HandleFeedback)
		})
	})

	return r, nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
