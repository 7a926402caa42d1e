package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"bloggers/cmd/security/token"
)

// Principal is the user an access token was issued to.
type Principal struct {
	UserID string
	Login  string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by a bearer guard.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// AccessParser is satisfied by *token.Manager.
type AccessParser interface {
	ParseAccess(raw string) (token.AccessClaims, error)
}

// RequireBearer rejects requests without a valid access token with 401.
func RequireBearer(tokens AccessParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authenticate(tokens, r)
			if !ok {
				WriteStatus(w, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalBearer attaches the principal when a valid access token is
// present and lets anonymous requests through.
func OptionalBearer(tokens AccessParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := authenticate(tokens, r); ok {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(tokens AccessParser, r *http.Request) (Principal, bool) {
	raw := BearerToken(r)
	if raw == "" {
		return Principal{}, false
	}
	claims, err := tokens.ParseAccess(raw)
	if err != nil || claims.UserID == "" {
		return Principal{}, false
	}
	return Principal{UserID: claims.UserID, Login: claims.Login}, true
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}

// RequireBasic guards admin routes with HTTP Basic credentials.
func RequireBasic(login, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || login == "" || !secureStringEqual(u, login) || !secureStringEqual(p, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				WriteStatus(w, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secureStringEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
