package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlagae/vidpipe/config"
	"github.com/mlagae/vidpipe/internal/adapter/media/ffmpeg"
	"github.com/mlagae/vidpipe/internal/adapter/storage/memory"
	sqlitestore "github.com/mlagae/vidpipe/internal/adapter/storage/sqlite"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/port"
	"github.com/mlagae/vidpipe/internal/service"

	HTTPAdapter "github.com/mlagae/vidpipe/internal/adapter/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Infof("starting vidpipe on port %d, storage=%s", cfg.Port, cfg.Storage)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Errorf("failed to create data directory: %v", err)
		os.Exit(1)
	}

	var repo port.Repository
	switch cfg.Storage {
	case "memory":
		repo = memory.NewStore()
	default:
		store, err := sqlitestore.NewStore(cfg.DataDir)
		if err != nil {
			logger.Errorf("failed to create store: %v", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()
		repo = store
	}

	media := ffmpeg.NewClient()
	eventBus := service.NewEventBus()
	cancels := service.NewCancelRegistry()

	worker := service.NewWorker(repo, media, media, media, cancels, eventBus, cfg.DataDir)
	manager := service.NewQueueManager(repo, worker, cancels, eventBus, cfg.AdmissionInterval)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := manager.Start(runCtx); err != nil {
		logger.Errorf("failed to start queue manager: %v", err)
		os.Exit(1)
	}

	scheduler := service.NewScheduler(repo, manager, eventBus, service.SchedulerConfig{
		StuckInterval:    cfg.StuckInterval,
		StuckTimeout:     cfg.StuckTimeout,
		RequeueInterval:  cfg.RequeueInterval,
		RequeueBatchSize: cfg.RequeueBatchSize,
		CleanupInterval:  cfg.CleanupInterval,
		JobRetention:     cfg.JobRetention,
		RollupInterval:   cfg.RollupInterval,
	})
	scheduler.Start(runCtx)

	pipeline := service.NewPipeline(repo, manager)
	monitoring := service.NewMonitoring(repo, manager)
	server := HTTPAdapter.NewServer(pipeline, manager, monitoring, eventBus)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // SSE streams stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Infof("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("http shutdown error: %v", err)
		}

		// Stop housekeeping, then drain in-flight jobs.
		stop()
		manager.Shutdown(context.Background(), cfg.ShutdownGrace)

		logger.Infof("shutdown complete")
	}()

	logger.Infof("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("server failed: %v", err)
		os.Exit(1)
	}
}
