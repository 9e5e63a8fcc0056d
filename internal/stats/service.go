package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/phoneshop-backend/pkg/errors"
	"github.com/angelmondragon/phoneshop-backend/pkg/logger"
	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

// Service builds the admin revenue dashboard.
type Service interface {
	Dashboard(ctx context.Context, timeframe string) (*Dashboard, error)
}

// ServiceParams groups the stats collaborators. Store, Logger and Clock are optional.
type ServiceParams struct {
	Repo     Repository
	Location *time.Location
	Store    redis.Store
	CacheTTL time.Duration
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo  Repository
	loc   *time.Location
	cache *dashboardCache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the revenue aggregator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stats repository required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:  params.Repo,
		loc:   loc,
		cache: newDashboardCache(params.Store, params.CacheTTL),
		logg:  params.Logger,
		now:   clock,
	}, nil
}

func (s *service) Dashboard(ctx context.Context, timeframe string) (*Dashboard, error) {
	tf, err := enums.ParseStatsTimeframe(timeframe)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	now := s.now()
	var key string
	if s.cache != nil {
		key = s.cache.key(string(tf), now.In(s.loc).Format(isoDate))
		cached, ok, err := s.cache.get(ctx, key)
		if err != nil {
			s.warn(ctx, err)
		} else if ok {
			return cached, nil
		}
	}

	buckets, err := layout(tf, now, s.loc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build chart layout")
	}
	rows, err := s.repo.RevenueBetween(ctx, buckets[0].Start, buckets[len(buckets)-1].End)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load revenue")
	}
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load revenue totals")
	}

	dashboard := &Dashboard{
		Timeframe:     tf,
		TotalRevenue:  totals.Revenue,
		TotalOrders:   totals.Orders,
		TotalProducts: totals.Products,
		ChartData:     fill(buckets, rows),
	}
	if err := s.cache.put(ctx, key, dashboard); err != nil {
		s.warn(ctx, err)
	}
	return dashboard, nil
}

func (s *service) warn(ctx context.Context, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, err.Error())
}
