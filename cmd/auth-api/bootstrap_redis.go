package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	config "github.com/NordCoder/Gatehouse/internal/config/auth-api"
	redisRepo "github.com/NordCoder/Gatehouse/internal/repository/redis"
)

func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	return redisRepo.NewClient(ctx, cfg.Redis)
}
