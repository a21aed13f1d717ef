package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"dividi/internal/amqp"
	"dividi/internal/cli"
	apphttp "dividi/internal/http"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/middleware/ratelimit"
	"dividi/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.InitStore(ctx, logger, cfg)
	m := metrics.New()

	opts := []services.Option{
		services.WithMetrics(m),
		services.WithCurrencySymbol(cfg.CurrencySymbol),
	}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			opts = append(opts, services.WithPublisher(amqpClient))
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewLedgerService(store.Store, opts...)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger service", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:    ":" + cfg.Port,
		Service: svc,
		Metrics: m,
		Logger:  logger,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		IdempotencyTTL: cfg.IdempotencyTTL,
		AllowedOrigins: cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting dividi server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		_ = svc.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
