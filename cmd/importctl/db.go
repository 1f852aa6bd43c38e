package main

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/memberimport/internal/config"
	"github.com/JonMunkholm/memberimport/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// openPostgres connects using the DATABASE_URL settings. The caller closes
// the returned pool.
func openPostgres(ctx context.Context) (*store.Postgres, *pgxpool.Pool, error) {
	var dbCfg config.DatabaseConfig
	if err := config.LoadInto(&dbCfg); err != nil {
		return nil, nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = 2
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	pg := store.NewPostgres(pool)
	if dbCfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return pg, pool, nil
}
