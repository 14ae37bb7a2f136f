package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/batch"
	"github.com/taxtrack/itax-automation/internal/captcha"
	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/services"
	"github.com/taxtrack/itax-automation/internal/storage"
	"github.com/taxtrack/itax-automation/internal/tasks"
)

// Container holds every wired service. Built once at startup, shared by
// the API server and the worker entrypoint.
type Container struct {
	Config       *config.Config
	Logger       *logrus.Logger
	Cache        services.CacheService
	Store        *storage.PostgresStore
	ObjectStore  *storage.SupabaseStore
	Factory      services.BrowserFactory
	Registry     *tasks.Registry
	Orchestrator *batch.Orchestrator

	redisClient *redis.Client
}

// New wires all services. Redis is optional: when it is unreachable the
// cache falls back to memory and startup continues. The database is
// not optional.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	c.redisClient = initRedis(cfg.Redis, logger)
	c.Cache = services.NewCacheService(c.redisClient, cfg.Redis.CacheTTL, logger)
	if rc, ok := c.Cache.(*services.RedisCacheService); ok {
		rc.StartCleanupRoutine()
	}

	store, err := storage.NewPostgresStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.Store = store

	c.ObjectStore = storage.NewSupabaseStore(cfg.Storage, logger)
	c.Factory = services.NewChromeFactory(cfg.Browser, logger)

	engine := captcha.NewTesseractEngine(cfg.Portal.TessdataPrefix)
	runner := tasks.NewRunner(c.Factory, engine, cfg.Portal, logger)

	c.Registry = tasks.NewRegistry(
		tasks.NewPasswordCheck(),
		tasks.NewObligationCheck(),
		tasks.NewPINCertificateDownload(c.ObjectStore),
		tasks.NewTCCCertificateDownload(c.ObjectStore),
		tasks.NewLedgerExtract(),
		tasks.NewPayrollStatutoryExport(c.ObjectStore),
	)

	sink := newCachingSink(store, c.Cache, logger)
	c.Orchestrator = batch.NewOrchestrator(store, sink, store, runner, c.Registry, cfg.Batch, logger)

	logger.WithField("tasks", c.Registry.Names()).Info("Services initialized")
	return c, nil
}

// initRedis connects to Redis and verifies it with a ping. A failed
// ping returns nil and the cache runs on memory alone.
func initRedis(cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-memory cache only")
		client.Close()
		return nil
	}

	logger.Info("Connected to Redis")
	return client
}

// Close releases every held resource.
func (c *Container) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	c.Logger.Info("Services closed")
}
