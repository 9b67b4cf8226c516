package main

import (
	"context"

	config "github.com/NordCoder/Gatehouse/internal/config/auth-api"
	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.NewDB(ctx, cfg.DB)
}
