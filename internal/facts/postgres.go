package facts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes facts to a dashboard_facts table through a pgx
// connection pool.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to the facts database and ensures the table
// exists.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sink := &PostgresSink{pool: pool}
	if err := sink.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return sink, nil
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dashboard_facts (
			id BIGSERIAL PRIMARY KEY,
			scope TEXT NOT NULL,
			fact_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			metadata JSONB,
			recorded_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create facts table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_dashboard_facts_scope_type
		ON dashboard_facts (scope, fact_type, recorded_at)`)
	if err != nil {
		return fmt.Errorf("failed to create facts index: %w", err)
	}

	return nil
}

// Record inserts one fact
func (s *PostgresSink) Record(ctx context.Context, fact Fact) error {
	var metadata []byte
	if fact.Metadata != nil {
		encoded, err := json.Marshal(fact.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = encoded
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dashboard_facts (scope, fact_type, value, metadata, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		fact.Scope, fact.FactType, fact.Value, metadata, fact.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}

	return nil
}

// Close releases the connection pool
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
