package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/forms"
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

// RouteFunc maps a request to a form kind. ok is false for requests the
// limiter should not touch.
type RouteFunc func(*http.Request) (kind forms.Kind, ok bool)

// Config for creating a rate limiter
type Config struct {
	Gate         *tufngate.Gate
	Route        RouteFunc              // Required: which form a request submits
	KeyExtractor tufngate.KeyExtractor  // Optional: defaults to the gate's extractor
}

// RateLimiter applies the gate's per-form sliding window to HTTP callers.
// The global cooldown is a client-side concern and is not applied here.
type RateLimiter struct {
	gate    *tufngate.Gate
	route   RouteFunc
	extract tufngate.KeyExtractor
	logger  *zap.Logger
}

// NewRateLimiter creates a new rate limiting middleware
func NewRateLimiter(config Config) (*RateLimiter, error) {
	if config.Gate == nil || config.Route == nil {
		return nil, fmt.Errorf("%w: rate limiter needs a gate and a route func", tufngate.ErrInvalidConfig)
	}
	if config.KeyExtractor == nil {
		config.KeyExtractor = config.Gate.KeyExtractor()
	}
	return &RateLimiter{
		gate:    config.Gate,
		route:   config.Route,
		extract: config.KeyExtractor,
		logger:  config.Gate.Logger().Named("ratelimit"),
	}, nil
}

// StaticRoutes returns a RouteFunc for a fixed method+path table, e.g.
// "POST /rest/v1/waitlist".
func StaticRoutes(routes map[string]forms.Kind) RouteFunc {
	return func(r *http.Request) (forms.Kind, bool) {
		kind, ok := routes[r.Method+" "+r.URL.Path]
		return kind, ok
	}
}

// Middleware wraps an http.Handler with rate limiting.
//
// Headers set on limited routes:
//   - X-RateLimit-Limit: maximum requests per window
//   - X-RateLimit-Remaining: requests left in the current window
//   - X-RateLimit-Reset, Retry-After: when rejected
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := rl.route(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		client, err := rl.extract(r)
		if err != nil {
			WriteProblem(w, http.StatusBadRequest, "bad request", "cannot identify client", nil)
			return
		}

		now := rl.gate.Now()
		d, err := rl.gate.AllowForm(r.Context(), kind, client, now)
		if err != nil {
			if errors.Is(err, tufngate.ErrUnknownForm) {
				rl.logger.Error("route mapped to unknown form", zap.String("form", string(kind)))
			} else {
				rl.logger.Warn("rate limit check failed, allowing", zap.String("form", string(kind)), zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retrySec := int64(math.Ceil(d.RetryAfter.Seconds()))
			if retrySec < 1 {
				retrySec = 1
			}
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(d.RetryAfter).Unix(), 10))
			w.Header().Set("Retry-After", strconv.FormatInt(retrySec, 10))
			writeProblem(w, Problem{
				Title:  "too many requests",
				Status: http.StatusTooManyRequests,
				Detail: tufngate.MsgRateLimited,
				Meta:   map[string]any{"retry_after_ms": d.RetryAfter.Milliseconds(), "form": kind},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
