// Package response writes API responses: JSON bodies on success and
// RFC 7807 problems on failure.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/servicestatus/servicestatus/internal/api/middleware"
	"github.com/servicestatus/servicestatus/internal/api/models"
)

// JSON writes data as JSON with the given status and the request ID header.
// A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Problem writes a problem of the given kind for r.
func Problem(w http.ResponseWriter, r *http.Request, kind models.Kind, detail string) {
	write(w, r, kind.New(middleware.GetRequestID(r.Context()), detail))
}

// Invalid writes a 400 validation problem listing the offending fields.
func Invalid(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	write(w, r, models.KindValidation.New(middleware.GetRequestID(r.Context()), detail).WithErrors(errs))
}

func write(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.WithInstance(r.URL.Path).Write(w)
}
