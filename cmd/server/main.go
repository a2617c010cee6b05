package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/hivehq/hive/internal/api"
	"github.com/hivehq/hive/internal/auth"
	"github.com/hivehq/hive/internal/bus"
	"github.com/hivehq/hive/internal/config"
	"github.com/hivehq/hive/internal/pkg/distlock"
	"github.com/hivehq/hive/internal/pkg/logger"
	"github.com/hivehq/hive/internal/presence"
	"github.com/hivehq/hive/internal/repository/postgres"
	"github.com/hivehq/hive/internal/service/broadcast"
	"github.com/hivehq/hive/internal/service/mailbox"
	"github.com/hivehq/hive/internal/service/swarm"
)

func main() {
	cfgPath := os.Getenv("HIVE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Error("database unreachable", "err", err)
		os.Exit(1)
	}

	// Redis is optional; without it the generator lock falls back to a
	// Postgres advisory lock.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("parse redis url", "err", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.New()
	authMgr := auth.NewManager(cfg.Auth)
	tracker := presence.New(b, authMgr.Roster(), cfg.Presence.APITimeout(), cfg.Presence.SweepInterval())

	mailboxSvc := mailbox.NewService(postgres.NewMailboxRepo(db), b, authMgr)
	tracker.SetCounts(mailboxSvc.Counts)
	go tracker.Run(ctx)

	broadcastSvc := broadcast.NewService(postgres.NewBroadcastRepo(db), b, cfg.Server.BaseURL)

	genLock := distlock.NewLock(redisClient, db, "hive:swarm:generator", 5*time.Minute)
	swarmSvc := swarm.NewService(postgres.NewSwarmRepo(db), b, broadcastSvc, genLock, swarm.GeneratorConfig{
		Horizon:   time.Duration(cfg.Swarm.GeneratorHorizonDays) * 24 * time.Hour,
		MaxPerRun: cfg.Swarm.GeneratorMaxPerRun,
	})

	handlers := api.NewHandlers(cfg, authMgr, b, tracker, mailboxSvc, broadcastSvc, swarmSvc, db)
	server := api.NewServer(cfg.Server, handlers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
