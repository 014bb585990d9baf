package api

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const checkTimeout = 2 * time.Second

type HealthChecker interface {
	HealthCheck() echo.HandlerFunc
}

type healthChecker struct {
	health *health.Health
}

func NewHealthChecker(version string, checks ...health.Config) (HealthChecker, error) {
	h, err := health.New(health.WithComponent(health.Component{Name: "tabletop-hub", Version: version}))
	if err != nil {
		return nil, errors.Wrap(err, "create health checker")
	}

	for _, check := range checks {
		if err = h.Register(check); err != nil {
			return nil, errors.Wrapf(err, "register health check %q", check.Name)
		}
	}

	return &healthChecker{
		health: h,
	}, nil
}

func (h *healthChecker) HealthCheck() echo.HandlerFunc {
	return echo.WrapHandler(h.health.Handler())
}

func PostgresCheck(pool *pgxpool.Pool) health.Config {
	return health.Config{
		Name:    "postgres",
		Timeout: checkTimeout,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

func RedisCheck(client redis.UniversalClient) health.Config {
	return health.Config{
		Name:    "redis",
		Timeout: checkTimeout,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
