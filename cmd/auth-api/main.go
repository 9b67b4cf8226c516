package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Gatehouse/internal/config/auth-api"
	"github.com/NordCoder/Gatehouse/internal/domain/user"
	kafkaRepo "github.com/NordCoder/Gatehouse/internal/repository/kafka"
	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
	redisRepo "github.com/NordCoder/Gatehouse/internal/repository/redis"
	authsvc "github.com/NordCoder/Gatehouse/internal/services/auth-api/auth"
	secsvc "github.com/NordCoder/Gatehouse/internal/services/auth-api/security"
	"github.com/NordCoder/Gatehouse/internal/token"

	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/auth-api.yaml"
}

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath())
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting auth-api", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(rootCtx) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb, err := initRedis(rootCtx, cfg)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	producer := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SMSTopic).WithLogger(logger)
	defer func() { _ = producer.Close() }()

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	// wiring
	var (
		users   user.Repo = pg.NewUserRepo(db)
		tokens            = pg.NewRefreshTokenRepo(db)
		codes             = redisRepo.NewCodeStore(rdb)
		deny              = redisRepo.NewBlacklist(rdb)
		limiter           = redisRepo.NewRateLimiter(rdb)
		events            = redisRepo.NewEventLog(rdb)
		flags             = redisRepo.NewFlagStore(rdb)
	)

	monitor := secsvc.NewMonitor(logger, events, flags, tokens, users)

	uc := authsvc.NewUsecase(authsvc.Deps{
		Users:     users,
		Tokens:    tokens,
		Codes:     codes,
		Blacklist: deny,
		Flags:     flags,
		Codec:     codec,
		SMS:       kafkaRepo.NewSMSEventsKafka(producer),
		Security:  monitor,
		Log:       logger,
	}, authsvc.Config{
		CodeTTL:     cfg.Auth.CodeTTL,
		VerifiedTTL: cfg.Auth.VerifiedTTL,
	})

	mw := authsvc.NewMiddleware(logger, uc, limiter, monitor, authsvc.RateLimitConfig{
		AuthLimit:  cfg.RateLimit.AuthLimit,
		AuthWindow: cfg.RateLimit.AuthWindow,
		APILimit:   cfg.RateLimit.APILimit,
		APIWindow:  cfg.RateLimit.APIWindow,
	}, cfg.Auth.AdminAPIKey)

	ctrl := authsvc.NewController(logger, uc, monitor)

	httpSrv := buildHTTPServer(cfg, logger, db, rdb, ctrl, mw)

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
