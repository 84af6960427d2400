package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales_portal_backend/internal/email"
	"sales_portal_backend/internal/leads"
	"sales_portal_backend/internal/notification"
	"sales_portal_backend/internal/scheduler"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/internal/sweep"
	"sales_portal_backend/internal/team"
	"sales_portal_backend/migrations"
	"sales_portal_backend/platform/config"
	"sales_portal_backend/platform/db"
	"sales_portal_backend/platform/events"
	"sales_portal_backend/platform/logger"
	"sales_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if cfg.RedisURL == "" {
		panic("REDIS_URL is required for the scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.Migrate(ctx, cfg, migrations.Files)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	if cfg.RedisTLSInsecure && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var sender email.Sender = email.NoopSender{}
	if cfg.EmailEnabled {
		sender = email.NewSMTPSender(cfg)
	} else {
		log.Warn("email delivery disabled; outbox messages will be dropped")
	}

	settingsModule := settings.NewModule(settings.ModuleOptions{
		Pool:     pool,
		Redis:    redisClient,
		CacheTTL: cfg.SettingsCacheTTL,
		Val:      val,
		Log:      log,
	})
	teamModule := team.NewModule(pool)
	notificationModule := notification.NewModule(pool, eventBus, log)
	leadsModule := leads.NewModule(pool, settingsModule.Service(), teamModule.Repository(), eventBus, val, log)

	resolver := sweep.NewResolver(leadsModule.Assigner(), leadsModule.Repository(), notificationModule.Emitter(), eventBus, log)
	sweeper := sweep.NewSweeper(
		leadsModule.Repository(),
		settingsModule.Service(),
		resolver,
		notificationModule.Emitter(),
		redisClient,
		cfg.SweepLockTTL,
		cfg.SweepConcurrency,
		log,
	)

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	enqueuer := scheduler.NewSweepEnqueuer(client, cfg.SweepInterval, log)
	go enqueuer.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, pool, sweeper, sender, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
