package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tenauth "github.com/arlox-io/tenauth"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal injected by [Guard] for the
// current request.
func PrincipalFromContext(ctx context.Context) (tenauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(tenauth.Principal)
	return p, ok
}

// Guard authorizes every request against the engine's policy table using
// the request path as the route. Authentication failures (missing or bad
// tokens, malformed claims, missing tenant) map to 401; policy denials
// map to 403. On success the principal is injected into the request
// context.
func Guard(engine *tenauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := tenauth.WithClientIP(r.Context(), remoteIP(r))

			token, _ := bearerToken(r.Header.Get("Authorization"))

			p, err := engine.Authorize(ctx, token, r.URL.Path)
			if err != nil {
				if errors.Is(err, tenauth.ErrForbidden) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func remoteIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
