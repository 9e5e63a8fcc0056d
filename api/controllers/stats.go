package controllers

import (
	"net/http"

	"github.com/angelmondragon/phoneshop-backend/api/responses"
	"github.com/angelmondragon/phoneshop-backend/internal/stats"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
)

// DashboardStats serves revenue totals and the chart series for ?timeframe.
func DashboardStats(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stats service unavailable"))
			return
		}
		timeframe := r.URL.Query().Get("timeframe")
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "timeframe", timeframe)
		}
		dashboard, err := svc.Dashboard(ctx, timeframe)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}
