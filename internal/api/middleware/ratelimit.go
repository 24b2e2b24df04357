package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/servicestatus/servicestatus/internal/api/models"
)

// RateLimit is a request budget per key and window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

var (
	// SweepLimit guards sweeps, which fan out to every status page.
	SweepLimit = RateLimit{Requests: 5, Window: time.Minute}

	// UpstreamLimit guards endpoints that fetch one status page.
	UpstreamLimit = RateLimit{Requests: 30, Window: time.Minute}

	// LocalLimit guards endpoints answered without any fetch.
	LocalLimit = RateLimit{Requests: 100, Window: time.Minute}
)

// LimitByIP limits requests per client IP. Behind chi's RealIP middleware
// the IP comes from X-Forwarded-For or X-Real-IP.
func LimitByIP(l RateLimit) func(http.Handler) http.Handler {
	return l.middleware(httprate.KeyByRealIP)
}

// LimitBySubject limits requests per authenticated operator, falling back
// to the client IP for anonymous requests.
func LimitBySubject(l RateLimit) func(http.Handler) http.Handler {
	return l.middleware(func(r *http.Request) (string, error) {
		if sub := GetSubject(r.Context()); sub != "" {
			return "sub:" + sub, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func (l RateLimit) middleware(key httprate.KeyFunc) func(http.Handler) http.Handler {
	// httprate does not expose the window reset, so clients are told to
	// wait a full window.
	retryAfter := strconv.Itoa(int(l.Window.Seconds()))

	return httprate.Limit(l.Requests, l.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeProblem(w, r, models.KindTooManyRequests, "Rate limit exceeded. Please try again later.")
		}),
	)
}
