package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/martech/internal/api"
	"github.com/rpattn/martech/internal/auth"
	"github.com/rpattn/martech/internal/config"
	"github.com/rpattn/martech/internal/db"
	"github.com/rpattn/martech/internal/ingestion"
	"github.com/rpattn/martech/internal/logger"
	"github.com/rpattn/martech/internal/report"
	"github.com/rpattn/martech/internal/repository"
	"github.com/rpattn/martech/internal/temp"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml and .env")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log, logCloser, err := logger.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	defer logCloser.Close()

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	staging, err := temp.NewStore(cfg.Upload.TempDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to prepare upload staging directory")
	}

	authService := auth.NewService(store.Users(), auth.NewTokens(cfg.Auth), cfg.Auth, log)
	router := api.NewRouter(api.Dependencies{
		Store:          store,
		Auth:           authService,
		Ingestion:      ingestion.NewService(store, staging, log),
		Reports:        report.NewService(store.Records(), log),
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   cfg.Server.Addr,
			"driver": cfg.Database.Driver,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

// openStore connects to the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (repository.Store, func()) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}
	}

	if cfg.Database.RunMigrations {
		if err := db.RunMigrations(cfg.Database.Config, log); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
	}

	conn, err := db.NewConnection(ctx, cfg.Database.Config, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	return repository.NewPostgresStore(conn), conn.Close
}
