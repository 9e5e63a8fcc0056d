package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/phoneshop-backend/internal/stats"
	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubStatsService struct {
	dashboard func(ctx context.Context, timeframe string) (*stats.Dashboard, error)
}

func (s *stubStatsService) Dashboard(ctx context.Context, timeframe string) (*stats.Dashboard, error) {
	return s.dashboard(ctx, timeframe)
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get("X-PhoneShop-Env"))
}

func TestHealthReadySkipsNilDependencies(t *testing.T) {
	deps := map[string]Pinger{
		"database": pingerFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "ready", envelope.Data.Status)
	require.Equal(t, map[string]string{"database": "up"}, envelope.Data.Checks)
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	deps := map[string]Pinger{
		"database": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, string(pkgerrors.CodeDependency), envelope.Error.Code)
}

func TestDashboardStatsPassesTimeframe(t *testing.T) {
	svc := &stubStatsService{
		dashboard: func(ctx context.Context, timeframe string) (*stats.Dashboard, error) {
			require.Equal(t, "month", timeframe)
			return &stats.Dashboard{
				Timeframe:    enums.StatsTimeframeMonth,
				TotalRevenue: decimal.RequireFromString("1600000.5"),
				TotalOrders:  5,
				ChartData:    []stats.ChartPoint{{Label: "01/03", Date: "2025-03-01", Revenue: decimal.Zero}},
			}, nil
		},
	}

	resp := httptest.NewRecorder()
	DashboardStats(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stats?timeframe=month", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data stats.Dashboard `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, enums.StatsTimeframeMonth, envelope.Data.Timeframe)
	require.True(t, envelope.Data.TotalRevenue.Equal(decimal.RequireFromString("1600000.5")))
	require.Len(t, envelope.Data.ChartData, 1)
}

func TestDashboardStatsRejectsUnknownTimeframe(t *testing.T) {
	svc := &stubStatsService{
		dashboard: func(ctx context.Context, timeframe string) (*stats.Dashboard, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown timeframe")
		},
	}

	resp := httptest.NewRecorder()
	DashboardStats(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stats?timeframe=decade", nil))

	require.Equal(t, http.StatusBadRequest, resp.Code)
}
