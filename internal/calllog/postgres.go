package calllog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ent0n29/callbridge/internal/realtime"
)

// PostgresStore persists call logs in PostgreSQL. Each call is one row with a
// JSONB event list, mirroring the original per-call document shape.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			stream_sid TEXT PRIMARY KEY,
			session_config JSONB NOT NULL,
			events JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_created ON calls (created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateCall(ctx context.Context, streamSid string, cfg realtime.SessionConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode session config: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO calls (stream_sid, session_config)
		 VALUES ($1, $2)
		 ON CONFLICT (stream_sid) DO UPDATE SET session_config = EXCLUDED.session_config`,
		streamSid,
		cfgJSON,
	)
	if err != nil {
		return fmt.Errorf("create call record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, streamSid string, event map[string]any) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET events = events || jsonb_build_array($2::jsonb) WHERE stream_sid = $1`,
		streamSid,
		eventJSON,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no call record for %s", streamSid)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
