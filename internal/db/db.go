package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/unclebandit/mailblast-backend/internal/config"
)

// Connect opens the PostgreSQL pool and verifies the connection.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	pg, err := sqlx.ConnectContext(ctx, "postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	pg.SetMaxOpenConns(cfg.MaxConns)
	pg.SetMaxIdleConns(cfg.MinConns)
	pg.SetConnMaxLifetime(time.Hour)

	if err := pg.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return pg, nil
}
