package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	config "github.com/NordCoder/Gatehouse/internal/config/auth-api"
	"github.com/NordCoder/Gatehouse/internal/obs"
	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
	authsvc "github.com/NordCoder/Gatehouse/internal/services/auth-api/auth"
)

func buildHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *pg.DB,
	rdb *redis.Client,
	ctrl *authsvc.Controller,
	mw *authsvc.Middleware,
) *http.Server {
	if cfg.App.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), authsvc.RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			c.String(http.StatusServiceUnavailable, "unhealthy: db")
			return
		}
		if err := rdb.Ping(hctx).Err(); err != nil {
			c.String(http.StatusServiceUnavailable, "unhealthy: redis")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(obs.MetricsHandler()))

	ctrl.Register(r, mw)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           obs.HTTPHandler(r, cfg.App.Name),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
