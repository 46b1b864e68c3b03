// Package store persists completed pipeline results to Postgres. The
// store is optional: when no DATABASE_URL is configured the service runs
// stateless and every Store method on a nil receiver is a no-op.
package store

import (
	"context"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{Pool: pool, log: log}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("url", maskDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("result store connected")
	return s, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) Close() {
	if s == nil {
		return
	}
	s.log.Info().Msg("closing result store pool")
	s.Pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transcriptions (
			id              BIGSERIAL PRIMARY KEY,
			filename        TEXT NOT NULL DEFAULT '',
			provider        TEXT NOT NULL,
			model           TEXT NOT NULL DEFAULT '',
			success         BOOLEAN NOT NULL,
			text            TEXT NOT NULL DEFAULT '',
			segments        JSONB,
			duration_ms     INTEGER NOT NULL DEFAULT 0,
			summary_type    TEXT,
			summary         TEXT,
			summary_success BOOLEAN,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
