package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/app"
	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/logger"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/tasks"
)

// The worker runs one batch to completion and exits. Several workers
// cover a large register by sharding on WORKER_START_INDEX and
// WORKER_BATCH_SIZE; the shared ID ordering keeps the shards disjoint.
func main() {
	taskName := flag.String("task", tasks.TaskPasswordCheck, "task to run")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format)
	logger.WithFields(logrus.Fields{
		"task":        *taskName,
		"start_index": cfg.Batch.StartIndex,
		"batch_size":  cfg.Batch.BatchSize,
	}).Info("Starting worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}
	defer container.Close()

	// SIGINT/SIGTERM request a stop; the current company still
	// finishes before the worker exits.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Signal received, stopping after current company")
		container.Orchestrator.Stop()
	}()

	sel := models.Selection{
		StartIndex: cfg.Batch.StartIndex,
		BatchSize:  cfg.Batch.BatchSize,
	}

	run, err := container.Orchestrator.Run(ctx, *taskName, sel)
	if err != nil {
		logger.Fatalf("Batch run failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"succeeded": run.Succeeded,
		"failed":    run.Failed,
		"report":    run.ReportPath,
	}).Info("Worker finished")
}
