package main

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/todolog/internal/config"
	boltInfra "github.com/fastygo/todolog/internal/infrastructure/bolt"
	"github.com/fastygo/todolog/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/todolog/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/todolog/internal/infrastructure/redis"
	"github.com/fastygo/todolog/internal/services"
	"github.com/fastygo/todolog/internal/services/lifecycle"
	"github.com/fastygo/todolog/repository"
	boltRepo "github.com/fastygo/todolog/repository/bolt"
	"github.com/fastygo/todolog/repository/postgres"
	redisRepo "github.com/fastygo/todolog/repository/redis"
)

const monitorInterval = 10 * time.Second

type stores struct {
	log    repository.TodoLog
	ids    repository.IDAllocator
	audits repository.AuditRepository
	check  monitor.Check
}

// openStores connects the configured backend and registers its shutdown hook.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager) (stores, error) {
	switch cfg.Store.Backend {
	case config.BackendBolt:
		store, err := boltInfra.Open(cfg.Bolt.Path)
		if err != nil {
			return stores{}, fmt.Errorf("open bolt store %s: %w", cfg.Bolt.Path, err)
		}
		manager.Register("bolt", func(ctx context.Context) error {
			return store.Close()
		})
		logger.Info("using embedded bolt store", zap.String("path", cfg.Bolt.Path))
		return stores{
			log:    boltRepo.NewTodoLog(store),
			ids:    boltRepo.NewIDAllocator(store),
			audits: boltRepo.NewAuditRepository(store),
			check:  monitor.Check{Name: "bolt", Ping: store.Ping},
		}, nil

	default:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return stores{}, fmt.Errorf("migrations failed: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return stores{}, fmt.Errorf("postgres connection failed: %w", err)
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		return stores{
			log:    postgres.NewTodoLog(pool),
			ids:    postgres.NewIDAllocator(pool),
			audits: postgres.NewAuditRepository(pool),
			check:  monitor.Check{Name: "postgres", Ping: pgInfra.Ping(pool)},
		}, nil
	}
}

// openRedis connects to Redis and fails when it cannot be reached.
func openRedis(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager) (*redislib.Client, error) {
	client, err := redisInfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	registerRedis(client, manager)
	return client, nil
}

// dialRedis returns a client even while Redis is down. Publishing fails per event and the
// audit pipeline backs off until the server answers.
func dialRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager) (*redislib.Client, error) {
	client, err := redisInfra.Dial(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	registerRedis(client, manager)
	return client, nil
}

func registerRedis(client *redislib.Client, manager *lifecycle.Manager) {
	manager.Register("redis", func(ctx context.Context) error {
		return client.Close()
	})
}

func startMonitor(logger *zap.Logger, manager *lifecycle.Manager, checks ...monitor.Check) *monitor.Monitor {
	mon := monitor.New(monitorInterval, logger, checks...)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})
	return mon
}

// startAuditPipeline runs the ingester and the stream janitor against the event stream.
func startAuditPipeline(
	ctx context.Context,
	cfg *config.Config,
	client *redislib.Client,
	audits repository.AuditRepository,
	mon *monitor.Monitor,
	logger *zap.Logger,
	manager *lifecycle.Manager,
) (*services.EventIngester, error) {
	sub, err := redisRepo.NewEventSubscription(ctx, client, redisRepo.SubscriptionConfig{
		Stream:   cfg.Events.Stream,
		Group:    cfg.Events.Group,
		Consumer: cfg.Events.Consumer,
		Block:    cfg.Ingester.Block,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", cfg.Events.Stream, err)
	}

	ingester := services.NewEventIngester(sub, audits, logger.Named("ingester"), services.IngesterConfig{
		BatchSize:    cfg.Ingester.BatchSize,
		StoreTimeout: cfg.Ingester.StoreTimeout,
		Backoff:      cfg.Ingester.Backoff,
	})
	if err := ingester.Start(ctx); err != nil {
		return nil, err
	}
	manager.Register("event_ingester", ingester.Stop)

	janitor := services.NewStreamJanitor(
		redisRepo.NewStreamTrimmer(client, cfg.Events.Stream),
		mon.Component("redis"),
		logger.Named("janitor"),
		services.JanitorConfig{Interval: cfg.Events.TrimInterval, MaxLen: cfg.Events.MaxLen},
	)
	janitor.Start()
	manager.Register("stream_janitor", func(ctx context.Context) error {
		janitor.Stop(ctx)
		return nil
	})

	logger.Info("audit pipeline running",
		zap.String("stream", cfg.Events.Stream),
		zap.String("group", cfg.Events.Group),
		zap.String("consumer", cfg.Events.Consumer))
	return ingester, nil
}
