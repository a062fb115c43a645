package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Ping checks that the pool is initialized and the server answers within 5s.
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close releases every connection in the pool. Safe to call more than once.
func (db *PostgresDB) Close() error {
	if db.Pool == nil {
		log.Info().Str("component", "database").Msg("Pool is already closed or was never initialized")
		return nil
	}

	log.Info().Str("component", "database").Msg("Closing database connection pool...")
	db.Pool.Close()
	db.Pool = nil
	log.Info().Str("component", "database").Msg("Database connection pool closed")

	return nil
}
