package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 64
)

// RequestID propagates a caller supplied request id or mints one. Ids that are
// too long or carry characters outside [A-Za-z0-9._-] are replaced.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
