package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/freewilll/potluck/api"
	"github.com/freewilll/potluck/config"
	"github.com/freewilll/potluck/database"
	"github.com/freewilll/potluck/lock"
	"github.com/freewilll/potluck/notify"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Create a schema if desired
	if cfg.CreateSchema {
		if err := db.CreateSchema(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		slog.Info("Database schema has been created")
		return nil
	}

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	notifier, closeNotifier, err := openNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	// All systems are go
	return api.NewAPI(db, locker, notifier).Serve(ctx, cfg.ServerPort)
}

func openDatabase(ctx context.Context, cfg *config.Config) (database.Database, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		slog.Info("Using sqlite", "path", cfg.SQLitePath)
		return database.NewSQLiteDatabase(ctx, cfg.SQLitePath)
	case config.BackendMemory:
		slog.Warn("Using the in memory database, nothing will be persisted")
		return database.NewInMemoryDatabase(), nil
	default:
		slog.Info("Using postgres", "host", cfg.Postgres.Host, "port", cfg.Postgres.Port, "name", cfg.Postgres.Name)
		return database.NewPgDatabase(ctx, cfg.Postgres)
	}
}

// openLocker uses redis when an address is configured so that several
// servers can share one database
func openLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.Lock.Addr == "" {
		return lock.NewInMemoryLocker(), func() {}, nil
	}

	locker := lock.NewRedisLocker(cfg.Lock)
	if err := locker.Ping(ctx); err != nil {
		locker.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Lock.Addr, err)
	}
	slog.Info("Using redis locks", "addr", cfg.Lock.Addr)
	return locker, func() { locker.Close() }, nil
}

func openNotifier(cfg *config.Config) (notify.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		return notify.Nop{}, func() {}, nil
	}

	notifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Publishing events", "exchange", cfg.AMQPExchange)
	return notifier, func() { notifier.Close() }, nil
}
