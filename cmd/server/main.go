package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inmopresence/config"
	"inmopresence/internal/database"
	"inmopresence/internal/job"
	"inmopresence/internal/metrics"
	"inmopresence/internal/repository"
	"inmopresence/internal/router"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Server.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Presence.Validate(); err != nil {
		logger.Fatal("invalid presence config", zap.Error(err))
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	database.SeedSuperAdmin(db)

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	if rdb == nil {
		logger.Info("redis not configured, presence relay disabled")
	}

	m := metrics.New()
	engine, relay := router.Setup(cfg, db, rdb, m, logger)

	ctx, stop := context.WithCancel(context.Background())
	relay.Start(ctx)

	reaper := job.NewReaper(repository.NewPresenceRepository(db), cfg.Presence.Retention, logger)
	sched := cron.New()
	if _, err := sched.AddJob("@hourly", reaper); err != nil {
		logger.Fatal("schedule reaper", zap.Error(err))
	}
	sched.Start()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	<-sched.Stop().Done()
	relay.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
