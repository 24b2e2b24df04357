package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/auth"
)

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// Auth requires a valid bearer token and stores its claims in the request
// context. Every failure is a 401 with a bearer challenge.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				writeUnauthorized(w, r, "authentication is not configured")
				return
			}

			token, detail := bearerToken(r.Header.Get("Authorization"))
			if detail != "" {
				writeUnauthorized(w, r, detail)
				return
			}

			claims, err := validator.Validate(token)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeUnauthorized(w, r, "access token has expired")
				return
			case errors.Is(err, auth.ErrInvalidToken):
				writeUnauthorized(w, r, "invalid access token")
				return
			case err != nil:
				writeUnauthorized(w, r, "authentication failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively. A non-empty detail explains a rejection.
func bearerToken(header string) (token, detail string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(rest); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// RequireScope answers 403 unless the authenticated token grants scope.
// It must run after Auth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil || !claims.HasScope(scope) {
				writeProblem(w, r, models.KindForbidden, "token lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="servicestatus"`)
	writeProblem(w, r, models.KindUnauthorized, detail)
}

// GetClaims returns the claims of the authenticated token, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// GetSubject returns the authenticated operator, or "" when anonymous.
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
