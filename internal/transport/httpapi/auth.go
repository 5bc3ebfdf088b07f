package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// TokenValidator is the slice of the token store the auth gate needs.
type TokenValidator interface {
	Exists(ctx context.Context) (bool, error)
	Validate(ctx context.Context, token string) (bool, error)
}

// exemptPaths are routes that bypass authentication.
var exemptPaths = map[string]struct{}{
	"/":        {},
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware validating Bearer tokens against
// the token store. With zero stored tokens the gateway is open and every
// request passes; the store is consulted per request, so creating the first
// token protects the gateway immediately and deleting the last one reopens it.
func BearerAuthMiddleware(tokens TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			protected, err := tokens.Exists(r.Context())
			if err != nil {
				logger.Error("token store unavailable", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !protected {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			ok, err := tokens.Validate(r.Context(), auth[len(bearerPrefix):])
			if err != nil {
				logger.Error("token validation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
