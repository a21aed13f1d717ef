package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dividi/internal/amqp"
	"dividi/internal/backend"
	"dividi/internal/cache"
	"dividi/internal/cli"
	"dividi/internal/log"
	"dividi/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentWorker)
	logger.Info("Starting dividi-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	exporter, err := backend.NewFactory(logger).CreateExporter(ctx, backend.ExporterFromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialize ledger exporter", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(exporter)

	caches := cache.NewManager()
	caches.Register(exportWorker.Seen())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeLedgerEvents(gctx, exportWorker.HandleLedgerEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
