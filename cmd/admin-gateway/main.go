package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mobilia/admin-gateway/internal/api"
	"github.com/mobilia/admin-gateway/internal/core/service"
	mongodb "github.com/mobilia/admin-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/mobilia/admin-gateway/internal/infrastructure/db/redis"
	"github.com/mobilia/admin-gateway/internal/infrastructure/queue"
	"github.com/mobilia/admin-gateway/internal/infrastructure/upstream"
	"github.com/mobilia/admin-gateway/internal/pkg/config"
	"github.com/mobilia/admin-gateway/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  time.Duration(cfg.Mongo.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Wiring ---
	auditRepo := mongodb.NewAuditRepository(db)
	auditQueue := queue.NewDispatcher(0, auditRepo, log)
	auditQueue.Start(ctx)

	store := redisdb.NewSessionStore(rdb)
	inflight := redisdb.NewInflightChecker(rdb)
	identity := upstream.New(cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second, log)

	controller := service.NewAuthController(store, identity, inflight, auditQueue, log, service.Options{
		LocalJWTSecret:        cfg.Bootstrap.JWTSecret,
		BootstrapIdentifier:   cfg.Bootstrap.AdminIdentifier,
		BootstrapPasswordHash: cfg.Bootstrap.AdminPasswordHash,
	})

	e := api.NewRouter(api.Deps{
		Controller: controller,
		Store:      store,
		Audit:      auditRepo,
		Catalog:    identity,
		Mongo:      db,
		Redis:      rdb,
		Config:     cfg,
		Log:        log,
	})

	// --- Serve ---
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("upstream", cfg.Upstream.BaseURL).Msg("admin gateway started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
