package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/q962/tab-stash/internal/config"
	"github.com/q962/tab-stash/internal/httpserver"
	"github.com/q962/tab-stash/internal/httpserver/deps"
	"github.com/q962/tab-stash/internal/kvs"
	"github.com/q962/tab-stash/internal/kvs/badger"
	"github.com/q962/tab-stash/internal/kvs/memory"
	kvsredis "github.com/q962/tab-stash/internal/kvs/redis"
	"github.com/q962/tab-stash/internal/logger"
	"github.com/q962/tab-stash/internal/scheduler"
	"github.com/q962/tab-stash/internal/stash"
	"github.com/q962/tab-stash/internal/utils"
	"github.com/q962/tab-stash/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       kvs.Store
	redisClient *goredis.Client
	stash       *stash.Stash
	sweeper     *scheduler.Sweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the store early - fail fast if unavailable
	store, redisClient, err := openStore(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.StoreBackend, err)
		os.Exit(1)
	}
	loggerClient.Info("store opened",
		logger.String("backend", cfg.StoreBackend),
		logger.String("namespace", cfg.StoreNamespace))

	// Start mirroring the deleted items; loading continues in the background.
	st := stash.New(context.Background(), store, loggerClient.With(logger.String("component", "stash")))

	// Retention sweeper (disabled when retention is 0)
	var sweeper *scheduler.Sweeper
	var sweepTrigger chan struct{}
	if cfg.Retention > 0 {
		sweeper = scheduler.NewSweeper(
			st,
			store,
			loggerClient.With(logger.String("component", "sweeper")),
			cfg.SweepInterval,
			cfg.Retention,
		)
		sweepTrigger = sweeper.Trigger()
	} else {
		loggerClient.Info("retention disabled, deletions are kept forever")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Stash:        st,
		Store:        store,
		StoreBackend: cfg.StoreBackend,
		SweepTrigger: sweepTrigger,
		Heartbeat:    cfg.SSEHeartbeat,
		WriteBurst:   cfg.WriteBurst,
		WriteRefill:  cfg.WriteRefill,
	}

	server := httpserver.New(cfg, loggerClient, d)
	// End event streams on shutdown, or Stop would wait for them.
	server.OnShutdown(st.Close)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		store:       store,
		redisClient: redisClient,
		stash:       st,
		sweeper:     sweeper,
	}
}

// openStore opens the configured backend. The Redis client is returned
// separately because the store does not own it.
func openStore(cfg *config.Config, log logger.Logger) (kvs.Store, *goredis.Client, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := kvsredis.Connect(kvsredis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RedisConnectTimeout)
		defer cancel()
		store, err := kvsredis.NewStore(ctx, client, cfg.StoreNamespace, log)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client, nil

	case config.BackendBadger:
		store, err := badger.Open(badger.Config{
			Dir:       cfg.BadgerDir,
			Namespace: cfg.StoreNamespace,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.BackendMemory:
		log.Warn("memory store selected, deletions are lost on restart")
		return memory.New(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting tab-stash v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("tab-stash %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start retention sweeper (first sweep once the deletions are loaded)
	if a.sweeper != nil {
		a.sweeper.Start(ctx)
		a.logger.Info("retention sweeper started",
			logger.Duration("interval", a.cfg.SweepInterval),
			logger.Duration("retention", a.cfg.Retention))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		a.logger.Error("http server stopped unexpectedly", logger.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	err := utils.CloseAll(
		utils.Closer{Name: "http server", Close: func() error { return a.server.Stop(shutdownCtx) }},
		utils.Closer{Name: "sweeper", Close: func() error {
			if a.sweeper != nil {
				a.sweeper.Stop()
			}
			return nil
		}},
		utils.Closer{Name: "stash", Close: func() error { a.stash.Close(); return nil }},
		utils.Closer{Name: "store", Close: a.store.Close},
		utils.Closer{Name: "redis", Close: func() error {
			if a.redisClient == nil {
				return nil
			}
			return a.redisClient.Close()
		}},
	)
	_ = a.logger.Sync()

	if runErr != nil {
		return runErr
	}
	if err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	a.logger.Info("✅ tab-stash stopped cleanly")
	return nil
}
