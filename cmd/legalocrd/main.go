package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/jus-team/legal-ocr-service/internal/batch"
	"github.com/jus-team/legal-ocr-service/internal/config"
	"github.com/jus-team/legal-ocr-service/internal/httpapi"
	"github.com/jus-team/legal-ocr-service/internal/ocrclient"
	"github.com/jus-team/legal-ocr-service/internal/persistence"
	"github.com/jus-team/legal-ocr-service/internal/service"
	"github.com/jus-team/legal-ocr-service/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	level := log.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.LogFile != "" {
		if err := log.InitFileLogger(level, cfg.Server.LogFile); err != nil {
			log.Fatal("Failed to open log file: %v", err)
		}
	} else {
		log.InitLogger(level)
	}

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath, cfg.Batch.JobTTL)
	if err != nil {
		log.Fatal("Failed to open job store: %v", err)
	}
	defer store.Close()

	client, err := ocrclient.NewClient(cfg.OCR)
	if err != nil {
		log.Fatal("Failed to build OCR client: %v", err)
	}

	orch := batch.NewOrchestrator(client, store, cfg.Batch.UploadConcurrency)

	c := cron.New()
	sweeper := service.NewSweeper(store, c, cfg.Batch.SweepSchedule)
	if err := sweeper.Schedule(context.Background()); err != nil {
		log.Fatal("Failed to schedule expiry sweep: %v", err)
	}
	c.Start()
	defer c.Stop()

	server := httpapi.NewServer(client, orch, cfg.Server.AllowedOrigins,
		httpapi.WithMaxUploadBytes(cfg.Batch.MaxUploadBytes))

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.ListenAddr)
		errCh <- server.ListenAndServe(cfg.Server.ListenAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("HTTP server failed: %v", err)
	case sig := <-stop:
		log.Info("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed: %v", err)
	}
}
