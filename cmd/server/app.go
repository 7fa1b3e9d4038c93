package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"taskify/internal/cache"
	"taskify/internal/config"
	"taskify/internal/database"
	"taskify/internal/middleware"
	"taskify/internal/monitoring"
	"taskify/internal/repositories"
	"taskify/internal/router"
	"taskify/internal/services"
	"taskify/internal/worker"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm/logger"
)

type taskUserStore interface {
	repositories.TaskStore
	repositories.UserStore
}

// App is the fully wired server. Close releases everything New opened.
type App struct {
	Handler http.Handler
	Monitor *monitoring.Monitor

	store       taskUserStore
	worker      *worker.Worker
	rateLimiter *middleware.RateLimiter
	closers     []func() error
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

func openSQLStore(cfg *config.Config, app *App) error {
	logLevel := logger.Warn
	if !cfg.IsProduction() {
		logLevel = logger.Info
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        logLevel,
	})
	if err != nil {
		return err
	}
	app.addCloser(pool.Close)

	if err := pool.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	app.store = repositories.NewGormStore(pool.DB)
	app.Monitor.RegisterHealthCheck("database", func(ctx context.Context) error {
		return pool.Health()
	})
	app.Monitor.RegisterStats("database", pool.Stats)
	return nil
}

func openMongoStore(ctx context.Context, cfg *config.Config, app *App) error {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetConnectTimeout(cfg.Mongo.ConnectTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	app.addCloser(func() error { return client.Disconnect(context.Background()) })

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping mongo: %w", err)
	}

	store := repositories.NewMongoStore(client.Database(cfg.Mongo.Database))
	if err := store.EnsureIndexes(connectCtx); err != nil {
		return err
	}

	app.store = store
	app.Monitor.RegisterHealthCheck("database", func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
	return nil
}

// NewApp connects the store, Redis and the worker and builds the router.
// Redis is optional; without it lists are not cached, refresh tokens live
// in memory and reminders are not scheduled.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Monitor: monitoring.NewMonitor()}

	var err error
	if cfg.Database.Driver == "mongo" {
		err = openMongoStore(ctx, cfg, app)
	} else {
		err = openSQLStore(cfg, app)
	}
	if err != nil {
		app.Close()
		return nil, err
	}

	var (
		refreshStore services.RefreshTokenStore
		reminders    services.ReminderScheduler
		taskCache    cache.Cache
	)

	if cfg.Redis.Enabled {
		redisCache := cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisCache.Health(ctx); err != nil {
			log.Printf("Warning: Redis at %s is not reachable yet: %v", cfg.GetRedisAddr(), err)
		}

		taskCache = cache.NewMultiLevelCache(redisCache, cache.DefaultMultiLevelConfig())
		app.addCloser(taskCache.Close)
		app.Monitor.RegisterHealthCheck("redis", redisCache.Health)

		refreshStore = services.NewRedisRefreshTokenStore(redisCache.Client())

		queueName := worker.DefaultQueue
		if len(cfg.Worker.Queues) > 0 {
			queueName = cfg.Worker.Queues[0]
		}
		reminders = services.NewQueueReminderScheduler(worker.NewJobQueue(redisCache.Client()), queueName)

		if cfg.Worker.Enabled {
			app.worker = worker.NewWorker(worker.WorkerConfig{
				RedisClient:  redisCache.Client(),
				Concurrency:  cfg.Worker.Concurrency,
				PollInterval: cfg.Worker.PollInterval,
				Queues:       cfg.Worker.Queues,
			})
			app.worker.RegisterHandler(worker.JobTypeTaskReminder, services.NewReminderHandler(app.store, services.NewRedisReminderLedger(redisCache.Client()), nil))
		}
	} else {
		log.Println("Redis disabled: task cache, shared refresh tokens and reminders are off")
	}

	var taskService services.TaskService = services.NewTaskService(app.store, reminders)
	if taskCache != nil {
		cached := services.NewCachedTaskService(taskService, taskCache)
		app.Monitor.RegisterStats("cache", cached.GetCacheStats)
		taskService = cached
	}

	authService := services.NewAuthService(app.store, refreshStore, services.AuthConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
		BCryptCost: cfg.Auth.BCryptCost,
	})

	if cfg.RateLimit.Enabled {
		app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
	}

	app.Handler = router.NewRouter(router.Dependencies{
		TaskService:    taskService,
		AuthService:    authService,
		RateLimiter:    app.rateLimiter,
		Monitor:        app.Monitor,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestLogging: true,
	})
	return app, nil
}

// Start launches the background loops. They stop when ctx is done.
func (a *App) Start(ctx context.Context, cfg *config.Config) {
	if a.worker != nil {
		a.worker.Start(cfg.Worker.Concurrency)
	}

	if a.rateLimiter != nil {
		interval := cfg.RateLimit.CleanupInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := a.rateLimiter.Cleanup(); n > 0 {
						log.Printf("Rate limiter dropped %d idle clients", n)
					}
				}
			}
		}()
	}
}

func (a *App) Close() error {
	if a.worker != nil {
		a.worker.Stop()
		a.worker = nil
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
