package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool は PostgreSQL 接続プールを生成する
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// One connection stays parked on LISTEN for each dashboard subscription.
	if cfg.MaxConns < 4 {
		cfg.MaxConns = 4
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Open は driver に応じた ContactRepository を返す。close は接続を解放する。
func Open(ctx context.Context, driver, databaseURL string) (ContactRepository, func(), error) {
	switch driver {
	case "memory":
		repo := NewMemoryContactRepository()
		return repo, repo.Close, nil
	case "postgres":
		pool, err := NewPool(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return NewPgContactRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
