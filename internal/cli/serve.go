package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/yakoovad/tabletop-hub/internal/api"
	"github.com/yakoovad/tabletop-hub/internal/auth"
	"github.com/yakoovad/tabletop-hub/internal/config"
	"github.com/yakoovad/tabletop-hub/internal/db"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/repository"
	"github.com/yakoovad/tabletop-hub/internal/service"
	"go.uber.org/zap"
)

const (
	version         = "v0.1.0"
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("starting application", zap.String("version", version))

	if cfg.AutoMigrate {
		if err = db.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		l.Info("migrations applied")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	l.Info("database connection established")

	checks := []health.Config{api.PostgresCheck(pool)}

	var tokenRepo repository.TokenRepository
	switch cfg.Token.Store {
	case config.TokenStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		if err = client.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "ping redis")
		}

		tokenRepo = repository.NewRedisTokenRepository(client)
		checks = append(checks, api.RedisCheck(client))
		l.Info("using redis token store", zap.String("addr", cfg.Redis.Addr))
	default:
		tokenRepo = repository.NewPgxTokenRepository(pool)
	}

	issuer, err := auth.NewIssuer(cfg.Token.Secret, cfg.Token.TTL)
	if err != nil {
		return err
	}

	healthChecker, err := api.NewHealthChecker(version, checks...)
	if err != nil {
		return err
	}

	transactor := db.NewPgxTransactor(pool)

	userRepo := repository.NewPgxUserRepository(pool)
	sessionRepo := repository.NewPgxGameRepository(pool, repository.SessionTables)
	sessionRequestRepo := repository.NewPgxJoinRequestRepository(pool, repository.SessionTables)
	campaignRepo := repository.NewPgxGameRepository(pool, repository.CampaignTables)
	campaignRequestRepo := repository.NewPgxJoinRequestRepository(pool, repository.CampaignTables)

	identity := service.NewIdentityService(transactor, issuer).WithUserRepo(userRepo).WithTokenRepo(tokenRepo)
	sessions := service.NewGameService(transactor, model.GameKindSession).WithGameRepo(sessionRepo)
	sessionRequests := service.NewJoinRequestService(transactor, model.GameKindSession).WithGameRepo(sessionRepo).WithJoinRequestRepo(sessionRequestRepo)
	campaigns := service.NewGameService(transactor, model.GameKindCampaign).WithGameRepo(campaignRepo)
	campaignRequests := service.NewJoinRequestService(transactor, model.GameKindCampaign).WithGameRepo(campaignRepo).WithJoinRequestRepo(campaignRequestRepo)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.NewHandler(l).
		WithHealthChecker(healthChecker).
		WithIdentityService(identity).
		WithSessionServices(sessions, sessionRequests).
		WithCampaignServices(campaigns, campaignRequests).
		RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return errors.Wrap(err, "start server")
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown server")
	}
	return nil
}
