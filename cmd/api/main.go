package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/marketplace-session/internal/api/http"
	"github.com/spec-kit/marketplace-session/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-session/internal/auth"
	"github.com/spec-kit/marketplace-session/internal/config"
	"github.com/spec-kit/marketplace-session/internal/events"
	"github.com/spec-kit/marketplace-session/internal/navigation"
	"github.com/spec-kit/marketplace-session/internal/observability"
	"github.com/spec-kit/marketplace-session/internal/persistence"
	"github.com/spec-kit/marketplace-session/internal/repository"
	"github.com/spec-kit/marketplace-session/internal/service"
	"github.com/spec-kit/marketplace-session/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, deps, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open credential store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	navigator := navigation.NewContextNavigator(dispatcher, logger)

	audit := service.NewAuditService(dispatcher, logger, metrics)
	stopAudit := worker.StartAuditWorker(audit)
	defer stopAudit()

	sessions := service.NewSessionService(service.SessionDependencies{
		Store:      store,
		Navigator:  navigator,
		Dispatcher: dispatcher,
		RootPath:   cfg.Routes.Root,
		Logger:     logger,
	})
	if err := sessions.Activate(ctx); err != nil {
		logger.Warn("session activated without stored credential", zap.Error(err))
	}
	defer sessions.Deactivate()

	upgrader := service.NewSellerUpgradeService(cfg.Backend, logger, metrics)
	callbacks := service.NewCallbackService(service.CallbackDependencies{
		Store:     store,
		Sessions:  sessions,
		Upgrader:  upgrader,
		Navigator: navigator,
		Routes:    cfg.Routes,
		Logger:    logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Backend, deps, metrics),
		Callback:          handlers.NewCallbackHandler(callbacks),
		Session:           handlers.NewSessionHandler(sessions, store, dispatcher, logger),
		OAuth:             handlers.NewOAuthHandler(store, cfg.Provider.StartURL(cfg.Backend)),
		SessionMiddleware: auth.NewSessionMiddleware(sessions),
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Listen(cfg.App.Addr())
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	g.Go(func() error {
		<-worker.StartStoreWatcher(gCtx, store, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// openStore builds the credential store for the configured backend along with
// the dependencies the readiness probe should check.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.CredentialStore, map[string]handlers.Pinger, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return repository.NewMemoryOrigin().NewContext(), nil, func() {}, nil

	case config.StoreRedis:
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		store := repository.NewRedisCredentialStore(rdb.Client, cfg.Store.Namespace, logger)
		return store, map[string]handlers.Pinger{"redis": rdb}, rdb.Close, nil

	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, nil, nil, err
			}
		}
		store := repository.NewPostgresCredentialStore(pg.Pool, pg, cfg.Store.Namespace, logger)
		return store, map[string]handlers.Pinger{"postgres": pg}, pg.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
