package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/tokengate/auth-service/internal/api/http"
	"github.com/tokengate/auth-service/internal/api/http/handlers"
	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/config"
	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/observability"
	"github.com/tokengate/auth-service/internal/persistence"
	"github.com/tokengate/auth-service/internal/repository"
	"github.com/tokengate/auth-service/internal/service"
	"github.com/tokengate/auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	cacheTTL := cfg.Redis.IdentityCacheTTL()
	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unreachable, identity cache disabled", zap.Error(err))
		cacheTTL = 0
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	identities := repository.NewCachedIdentityStore(userRepo, rdb.Client, cacheTTL, logger)

	tokens := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	tokenService := service.NewTokenService(tokens, identities, service.TokenServiceOptions{
		Dispatcher:        dispatcher,
		Logger:            logger,
		PermissiveRefresh: cfg.Auth.PermissiveRefresh,
	})
	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:    userRepo,
		Invalidator: identities,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	if cfg.Auth.PermissiveRefresh {
		logger.Warn("permissive refresh enabled: refresh tokens skip the subject check")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tokens:         handlers.NewTokenHandler(tokenService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, identities, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
