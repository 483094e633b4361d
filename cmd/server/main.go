package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/task-tracker/internal/auth"
	"github.com/ayush/task-tracker/internal/config"
	"github.com/ayush/task-tracker/internal/logger"
	"github.com/ayush/task-tracker/internal/router"
	"github.com/ayush/task-tracker/internal/store"
	"github.com/ayush/task-tracker/internal/tasks"
	"github.com/ayush/task-tracker/internal/web"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "err", err)
	}
	ctx := context.Background()

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("mongo connect", "err", err)
	}
	defer mongoClient.Disconnect(context.Background())
	if err := mongoClient.Ping(ctx, nil); err != nil {
		logger.Fatal("mongo ping", "err", err)
	}
	users := store.NewUserStore(mongoClient.Database(cfg.MongoDB))
	if err := users.EnsureIndexes(ctx); err != nil {
		logger.Fatal("mongo indexes", "err", err)
	}

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", "err", err)
	}
	defer pgPool.Close()
	if err := pgPool.Ping(ctx); err != nil {
		logger.Fatal("postgres ping", "err", err)
	}
	db := stdlib.OpenDBFromPool(pgPool)
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		logger.Fatal("postgres migrate", "err", err)
	}
	taskStore := store.NewTaskStore(db)

	// ── Redis (optional) ─────────────────────────────────────
	var revoker auth.Revoker
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("redis connect", "err", err)
		}
		defer rdb.Close()
		revoker = store.NewSessionRevocations(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set; logged-out cookies stay valid until they expire")
	}

	// ── Sessions & views ─────────────────────────────────────
	sessions, err := auth.NewManager(auth.ManagerConfig{
		Secret:       cfg.SessionSecret,
		IdleTimeout:  cfg.SessionIdleTimeout,
		MaxLifetime:  cfg.SessionMaxLifetime,
		SecureCookie: cfg.CookieSecure,
		Revoker:      revoker,
	})
	if err != nil {
		logger.Fatal("session manager", "err", err)
	}
	views, err := web.NewRenderer()
	if err != nil {
		logger.Fatal("templates", "err", err)
	}

	// ── Router ───────────────────────────────────────────────
	handler := router.New(router.Deps{
		Sessions:    sessions,
		Auth:        auth.NewHandler(users, sessions, views),
		Tasks:       tasks.NewHandler(taskStore, views),
		Views:       views,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
