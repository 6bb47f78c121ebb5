package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"csv-chat/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresStore keeps the uploaded table in a PostgreSQL schema.
type PostgresStore struct {
	dsn string
}

func NewPostgres(cfg config.PostgresConfig) *PostgresStore {
	return &PostgresStore{dsn: cfg.GetDSN()}
}

func (s *PostgresStore) Dialect() Dialect { return DialectPostgres }

func (s *PostgresStore) Open(ctx context.Context, readOnly bool) (*sql.DB, error) {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// One connection so the session setting below covers every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if readOnly {
		if _, err := db.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to make postgres session read-only: %w", err)
		}
	}
	return db, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return ping(ctx, s)
}
