package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Gatehouse/internal/config/sms-notifier"
	"github.com/NordCoder/Gatehouse/internal/domain/sms"
	"github.com/NordCoder/Gatehouse/internal/obs"
	"github.com/NordCoder/Gatehouse/internal/repository/kafka"
	notifier "github.com/NordCoder/Gatehouse/internal/services/sms-notifier"

	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/sms-notifier.yaml"
}

func buildGateway(cfg *config.Config, l *zap.Logger) sms.Gateway {
	switch cfg.Gateway.Kind {
	case "http":
		return notifier.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.From, cfg.Gateway.Timeout, l)
	default:
		return notifier.NewLogGateway(l)
	}
}

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	l.Info("starting sms-notifier",
		zap.Any("kafka_in", cfg.In),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("gateway", cfg.Gateway.Kind),
	)

	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(context.Context) error { return nil }, l)

	cons := kafka.BootstrapConsumer(rootCtx, cfg.In.AsConsumerConfig(), l).WithLogger(l)
	defer func() { _ = cons.Close() }()

	runner := notifier.NewRunner(l, cons, buildGateway(cfg, l))

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(rootCtx) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr = <-errCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			l.Error("runner error", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
