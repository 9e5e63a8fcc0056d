package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/phoneshop-backend/api/responses"
	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PhoneShop-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. Nil pingers are skipped so the
// API can run without redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PhoneShop-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed []string
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = append(failed, name)
				continue
			}
			checks[name] = "up"
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
