package middleware

import (
	"net/http"

	"github.com/servicestatus/servicestatus/internal/api/models"
)

// writeProblem is the middleware counterpart of response.Problem, which
// cannot be used here because the response package imports middleware.
func writeProblem(w http.ResponseWriter, r *http.Request, kind models.Kind, detail string) {
	kind.New(GetRequestID(r.Context()), detail).WithInstance(r.URL.Path).Write(w)
}
