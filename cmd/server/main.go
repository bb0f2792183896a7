package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	httpapi "github.com/example/ride-dispatch/internal/http"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/matcher"
	"github.com/example/ride-dispatch/internal/notify"
	"github.com/example/ride-dispatch/internal/pricing"
)

func main() {
	cfg, cfgErr := config.LoadServerConfig()
	logger := logging.NewLoggerWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Error("invalid configuration", "error", cfgErr)
		os.Exit(1)
	}

	// resolved before any broker connection is opened so a bad value exits cleanly
	policy, calc, err := resolveEngineSettings(cfg)
	if err != nil {
		logger.Error("invalid engine settings", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub(logger, cfg.NotifyTimeout)
	hub.Subscribe(notify.NewLogObserver(logger, "ops", ""))
	ws := notify.NewWSRegistry()
	hub.Subscribe(ws)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafkaObserver(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
		hub.Subscribe(k)
		closers = append(closers, k)
		logger.Info("kafka event sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	}
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable; events will be retried per publish", "addr", cfg.RedisAddr, "error", err)
		}
		hub.Subscribe(notify.NewRedisObserver(rc, cfg.RedisEventsChannel))
		closers = append(closers, rc)
		logger.Info("redis event sink enabled", "addr", cfg.RedisAddr, "channel", cfg.RedisEventsChannel)
	}
	if cfg.AMQPURL != "" {
		a, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("amqp sink disabled", "error", err)
		} else {
			hub.Subscribe(a)
			closers = append(closers, a)
			logger.Info("amqp event sink enabled", "exchange", cfg.AMQPExchange)
		}
	}

	if cfg.WebhookURL != "" {
		hub.Subscribe(notify.NewWebhookObserver(cfg.WebhookURL, cfg.WebhookToken))
		logger.Info("webhook push enabled", "endpoint", cfg.WebhookURL)
	}

	engine := dispatch.New(hub,
		dispatch.WithPolicy(policy),
		dispatch.WithCalculator(calc),
		dispatch.WithLogger(logger),
		dispatch.WithStrictTransitions(cfg.StrictTransitions),
		dispatch.WithSpeedKmh(cfg.DefaultSpeedKmh),
	)

	if len(cfg.KafkaBrokers) > 0 {
		consumer := ingest.NewLocationConsumer(cfg.KafkaBrokers, cfg.KafkaLocationsTopic, cfg.KafkaGroup, engine, logger)
		closers = append(closers, consumer)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("driver update consumer stopped", "error", err)
			}
		}()
		logger.Info("driver update consumer started", "topic", cfg.KafkaLocationsTopic, "group", cfg.KafkaGroup)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(engine, ws, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ride-dispatch listening", "addr", cfg.HTTPAddr, "policy", policy.Name(), "strict", cfg.StrictTransitions)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func resolveEngineSettings(cfg config.ServerConfig) (matcher.Policy, pricing.Calculator, error) {
	policy, err := matcher.ByName(cfg.MatchingPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("matching policy: %w", err)
	}
	calc, err := pricing.Configured(cfg.PricingSurge, cfg.PricingDiscountPct, cfg.PricingToll)
	if err != nil {
		return nil, nil, fmt.Errorf("pricing: %w", err)
	}
	return policy, calc, nil
}
