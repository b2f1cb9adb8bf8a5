package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/JonMunkholm/catalog-import/internal/metrics"
)

// RateLimit limits each client IP to requestsPerMinute requests. name
// labels the limiter in logs and metrics. The key is r.RemoteAddr, so
// TrustedRealIP must run first.
func RateLimit(name string, requestsPerMinute int) func(http.Handler) http.Handler {
	return RateLimitWithStore(name, limiter.Rate{Period: time.Minute, Limit: int64(requestsPerMinute)}, memory.NewStore())
}

// RateLimitWithStore is RateLimit with an explicit rate and store.
func RateLimitWithStore(name string, rate limiter.Rate, store limiter.Store) func(http.Handler) http.Handler {
	instance := limiter.New(store, rate)

	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(func(r *http.Request) string {
			return name + ":" + r.RemoteAddr
		}),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimited.WithLabelValues(name).Inc()
			slog.Warn("rate limit exceeded",
				"limiter", name,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(rate.Period.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE_LIMITED")
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("rate limiter store failed", "limiter", name, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "rate limiter unavailable", "RATE_LIMIT_ERROR")
		}),
	)
	return mw.Handler
}
