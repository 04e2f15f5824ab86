package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/todolog/api/handler"
	"github.com/fastygo/todolog/internal/config"
	"github.com/fastygo/todolog/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/todolog/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/todolog/internal/infrastructure/redis"
	"github.com/fastygo/todolog/internal/middleware"
	"github.com/fastygo/todolog/internal/router"
	"github.com/fastygo/todolog/internal/services"
	"github.com/fastygo/todolog/internal/services/lifecycle"
	"github.com/fastygo/todolog/pkg/httpcontext"
	redisRepo "github.com/fastygo/todolog/repository/redis"
	auditUC "github.com/fastygo/todolog/usecase/audit"
	todoUC "github.com/fastygo/todolog/usecase/todo"
)

func runServe(c *cli.Context) error {
	cfg, zapLogger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(c.Context)
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	st, err := openStores(appCtx, cfg, zapLogger, manager)
	if err != nil {
		return shutdownWith(manager, zapLogger, err)
	}
	redisClient, err := dialRedis(appCtx, cfg, zapLogger, manager)
	if err != nil {
		return shutdownWith(manager, zapLogger, err)
	}
	mon := startMonitor(zapLogger, manager, st.check, monitor.Check{Name: "redis", Ping: redisInfra.Ping(redisClient)})

	publisher := services.NewEventPublisher(
		redisRepo.NewEventProducer(redisClient, cfg.Events.Stream, cfg.Events.MaxLen),
		zapLogger.Named("publisher"),
		services.PublisherConfig{Timeout: cfg.Events.PublishTimeout},
	)
	manager.Register("event_publisher", publisher.Close)

	if cfg.Ingester.Enabled && !c.Bool("no-ingester") {
		if _, err := startAuditPipeline(appCtx, cfg, redisClient, st.audits, mon, zapLogger, manager); err != nil {
			return shutdownWith(manager, zapLogger, err)
		}
	}

	todoUseCase := todoUC.New(st.log, st.ids, publisher, zapLogger)
	auditUseCase := auditUC.New(st.audits)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Todo:   apiHandler.NewTodoHandler(todoUseCase, auditUseCase, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store", cfg.Store.Backend))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server crashed", zap.Error(err))
			cancel()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	if err := manager.Wait(appCtx); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
		return err
	}
	return nil
}

func runIngest(c *cli.Context) error {
	cfg, zapLogger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(c.Context)
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	st, err := openStores(appCtx, cfg, zapLogger, manager)
	if err != nil {
		return shutdownWith(manager, zapLogger, err)
	}
	redisClient, err := openRedis(appCtx, cfg, manager)
	if err != nil {
		return shutdownWith(manager, zapLogger, err)
	}
	mon := startMonitor(zapLogger, manager, st.check, monitor.Check{Name: "redis", Ping: redisInfra.Ping(redisClient)})

	ingester, err := startAuditPipeline(appCtx, cfg, redisClient, st.audits, mon, zapLogger, manager)
	if err != nil {
		return shutdownWith(manager, zapLogger, err)
	}

	select {
	case <-appCtx.Done():
	case <-ingester.Done():
		zapLogger.Warn("ingester exited")
	}
	return manager.Shutdown(context.Background())
}

func runMigrate(c *cli.Context) error {
	cfg, zapLogger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=%s, got %s", config.BackendPostgres, cfg.Store.Backend)
	}
	cfg.Migrations.Enabled = true
	return pgInfra.RunMigrations(cfg, zapLogger)
}

// shutdownWith releases what was already opened and returns the startup error.
func shutdownWith(manager *lifecycle.Manager, logger *zap.Logger, err error) error {
	if shutdownErr := manager.Shutdown(context.Background()); shutdownErr != nil {
		logger.Error("shutdown after startup failure", zap.Error(shutdownErr))
	}
	return err
}
