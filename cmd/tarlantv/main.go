package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/cache"
	"github.com/tarlanaraujo/TarlanTV/internal/config"
	"github.com/tarlanaraujo/TarlanTV/internal/fetcher"
	"github.com/tarlanaraujo/TarlanTV/internal/probe"
	"github.com/tarlanaraujo/TarlanTV/internal/server"
	"github.com/tarlanaraujo/TarlanTV/internal/service"
	"github.com/tarlanaraujo/TarlanTV/internal/store"
	"github.com/tarlanaraujo/TarlanTV/internal/validator"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("tarlantv exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err := store.WaitForDatabase(waitCtx, cfg.DatabaseURL, 2*time.Second)
	cancel()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := store.RunMigrations(cfg.DatabaseURL, "file://"+migrationsDir()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pg.Close()

	// Redis is optional: without it reads go straight to Postgres and locks
	// are held in process.
	var appStore store.Store = pg
	var locker cache.Locker = cache.NewLocalLocker()
	if cfg.RedisURL != "" {
		rds, err := cache.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()
		if err := rds.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		appStore = store.NewCachedStore(pg, rds, logger)
		locker = cache.NewRedisLocker(rds)
		logger.Info("redis connected (caching enabled)")
	} else {
		logger.Info("redis disabled (REDIS_URL not set)")
	}

	prober := probe.New(nil, cfg.UserAgent, cfg.ProbeTimeout)
	v := validator.New(prober, appStore, validator.Options{
		Concurrency: cfg.ProbeConcurrency,
		Timeout:     cfg.ProbeTimeout,
		Pacing:      pacing(cfg.ProbePacing),
	}, logger.Named("validator"))

	coord := service.New(appStore, fetcher.New(cfg.UserAgent, cfg.Timeout), v, locker,
		service.Options{Workers: cfg.IngestWorkers}, logger.Named("coordinator"))
	if err := coord.Recover(ctx); err != nil {
		logger.Warn("recover stale jobs", zap.Error(err))
	}
	coord.Start()
	defer coord.Stop()

	srv := server.New(coord, cfg.ServerPort, logger.Named("http"))
	return srv.ListenAndServe(ctx)
}

// pacing maps the configured value to validator semantics, where zero means
// the default and a negative value disables pacing.
func pacing(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// migrationsDir finds the migrations directory next to the working directory
// or the executable.
func migrationsDir() string {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		abs = "migrations"
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return abs
}
