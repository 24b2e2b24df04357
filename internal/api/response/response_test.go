package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicestatus/servicestatus/internal/api/middleware"
	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/api/response"
)

// serve runs write behind the RequestID middleware so the request carries
// an ID, preserving the incoming X-Request-Id when one is given.
func serve(t *testing.T, path, requestID string, write http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	rec := httptest.NewRecorder()
	middleware.RequestID(write).ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestJSON(t *testing.T) {
	rec := serve(t, "/v1/services", "client-request-123", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]int{"count": 2})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "client-request-123", rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestJSON_NilDataWritesNoBody(t *testing.T) {
	rec := serve(t, "/v1/services", "", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, nil)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, "ok")

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
}

func TestProblem(t *testing.T) {
	tests := []struct {
		kind   models.Kind
		detail string
	}{
		{models.KindNotFound, `Unknown service "Nope"`},
		{models.KindUpstream, "Service Status Request Error: https://www.githubstatus.com/api/v2/components.json returned 503"},
		{models.KindUpstream, "Response Format Error"},
		{models.KindInternal, "Service Status Error"},
		{models.KindUnavailable, "no services registered"},
	}

	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			rec := serve(t, "/v1/services/Nope/status", "req_abc", func(w http.ResponseWriter, r *http.Request) {
				response.Problem(w, r, tt.kind, tt.detail)
			})

			assert.Equal(t, tt.kind.Status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.kind.Type, p.Type)
			assert.Equal(t, tt.detail, p.Detail, "detail is passed through unchanged")
			assert.Equal(t, "/v1/services/Nope/status", p.Instance)
			assert.Equal(t, "req_abc", p.TraceID)
		})
	}
}

func TestInvalid(t *testing.T) {
	fields := []models.FieldError{{Field: "services[0]", Message: `unknown service "Nope"`, Code: "UNKNOWN_SERVICE"}}

	rec := serve(t, "/v1/ops/sweep", "", func(w http.ResponseWriter, r *http.Request) {
		response.Invalid(w, r, "unknown services in request", fields)
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, fields, p.Errors)
	assert.NotEmpty(t, p.TraceID)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), p.TraceID)
}
