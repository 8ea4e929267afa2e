package middleware

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit limits requests per client IP with an in-memory store. rate uses
// the limiter format, e.g. "30-M" for thirty requests per minute.
func RateLimit(rate string) (func(http.Handler) http.Handler, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	instance := limiter.New(memory.NewStore(), r)
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			log.Warn().Str("path", req.URL.Path).Str("remote", req.RemoteAddr).Msg("rate limit reached")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		}),
	)
	return mw.Handler, nil
}
