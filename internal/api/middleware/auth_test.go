package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicestatus/servicestatus/internal/api/middleware"
	"github.com/servicestatus/servicestatus/internal/auth"
)

const testSubject = "ops@servicestatus"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "servicestatus",
		Audience:   "servicestatus-api",
	})
	require.NoError(t, err)
	return svc
}

func issue(t *testing.T, svc *auth.TokenService, scopes ...string) string {
	t.Helper()
	tok, err := svc.Issue(testSubject, scopes...)
	require.NoError(t, err)
	return tok.Value
}

// validatorFunc adapts a function to middleware.TokenValidator.
type validatorFunc func(token string) (*auth.Claims, error)

func (f validatorFunc) Validate(token string) (*auth.Claims, error) { return f(token) }

func authorize(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth_Rejections(t *testing.T) {
	h := middleware.Auth(newTokenService(t))(okHandler())

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing header", "", "missing authorization header"},
		{"no scheme", "token123", "invalid authorization header format"},
		{"basic auth", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"just bearer", "Bearer", "invalid authorization header format"},
		{"empty bearer", "Bearer   ", "missing bearer token"},
		{"bad token", "Bearer invalid.jwt.token", "invalid access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := authorize(h, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, `Bearer realm="servicestatus"`, rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestAuth_ValidatorErrors(t *testing.T) {
	for err, detail := range map[error]string{
		auth.ErrTokenExpired: "access token has expired",
		auth.ErrInvalidToken: "invalid access token",
		errors.New("boom"):   "authentication failed",
	} {
		v := validatorFunc(func(string) (*auth.Claims, error) { return nil, err })
		rec := authorize(middleware.Auth(v)(okHandler()), "Bearer abc")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), detail)
	}
}

func TestAuth_NilValidator(t *testing.T) {
	rec := authorize(middleware.Auth(nil)(okHandler()), "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication is not configured")
}

func TestAuth_ValidTokenStoresClaims(t *testing.T) {
	svc := newTokenService(t)
	token := issue(t, svc, auth.ScopeSweep)

	var claims *auth.Claims
	h := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = middleware.GetClaims(r.Context())
		assert.Equal(t, testSubject, middleware.GetSubject(r.Context()))
	}))

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		rec := authorize(h, scheme+" "+token)
		assert.Equal(t, http.StatusOK, rec.Code, scheme)
	}
	require.NotNil(t, claims)
	assert.True(t, claims.HasScope(auth.ScopeSweep))
}

func TestRequireScope(t *testing.T) {
	svc := newTokenService(t)
	h := middleware.Auth(svc)(middleware.RequireScope(auth.ScopeSweep)(okHandler()))

	assert.Equal(t, http.StatusOK, authorize(h, "Bearer "+issue(t, svc, auth.ScopeRead, auth.ScopeSweep)).Code)

	rec := authorize(h, "Bearer "+issue(t, svc, auth.ScopeRead))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")
	assert.Contains(t, rec.Body.String(), auth.ScopeSweep)
}

func TestRequireScope_WithoutAuth(t *testing.T) {
	rec := authorize(middleware.RequireScope(auth.ScopeRead)(okHandler()), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetSubject_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetSubject(req.Context()))
	assert.Nil(t, middleware.GetClaims(req.Context()))
}
