package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/api/models"
)

// Recovery returns a middleware that recovers from panics and returns a
// 500 Problem. http.ErrAbortHandler is re-panicked so net/http can abort
// the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(err)
				}

				requestID := GetRequestID(r.Context())

				log.Error().
					Str("request_id", requestID).
					Str("path", r.URL.Path).
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				writeProblem(w, r, models.KindInternal, "an unexpected error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
