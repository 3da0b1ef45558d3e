package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	gormlogger "gorm.io/gorm/logger"

	"rentals/internal/config"
	"rentals/internal/database"
	"rentals/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLog := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	defer func() { _ = appLog.Sync() }()

	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	dbOpts := database.DefaultOptions()
	dbOpts.ConnTimeout = cfg.Database.ConnTimeout
	dbOpts.MaxOpenConns = cfg.Database.MaxOpenConns
	dbOpts.MaxIdleConns = cfg.Database.MaxIdleConns
	if config.IsProdLike(cfg.AppEnv) {
		dbOpts.LogLevel = gormlogger.Error
	}

	db, err := database.Connect(cfg.Database.URL, dbOpts)
	if err != nil {
		appLog.Fatalf("database: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			appLog.Fatalf("migrate: %v", err)
		}
	}

	storage, err := newStorage(cfg)
	if err != nil {
		appLog.Fatalf("photo storage: %v", err)
	}

	app, err := newServer(cfg, db, storage, appLog)
	if err != nil {
		appLog.Fatalf("wire server: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		appLog.Infow("server starting", "addr", srv.Addr, "env", cfg.AppEnv, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	appLog.Infow("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.Errorw("server forced to shutdown", "error", err)
	}
	// websocket connections are hijacked, Shutdown does not wait for them
	app.close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	appLog.Infow("server exited")
}
