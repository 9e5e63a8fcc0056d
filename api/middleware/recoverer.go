package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/phoneshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

// Recoverer turns handler panics into INTERNAL_ERROR responses. http.ErrAbortHandler
// is re-raised so the server can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"panic": fmt.Sprint(rec)})
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
