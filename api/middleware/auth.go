package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/phoneshop-backend/api/responses"
	pkgAuth "github.com/angelmondragon/phoneshop-backend/pkg/auth"
	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, logg, true)
}

// OptionalAuth seeds claims when a bearer token is present and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, logg, false)
}

func authenticate(cfg config.JWTConfig, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			if claims.Name != "" {
				ctx = context.WithValue(ctx, ctxName, claims.Name)
			}

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    claims.UserID.String(),
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
