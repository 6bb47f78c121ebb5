package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the uploaded table in a single SQLite file.
type SQLiteStore struct {
	Path string
}

func NewSQLite(path string) *SQLiteStore {
	return &SQLiteStore{Path: path}
}

func (s *SQLiteStore) Dialect() Dialect { return DialectSQLite }

// DSN builds the modernc.org/sqlite data source name. Read-only connections
// set query_only so the engine itself refuses writes.
func (s *SQLiteStore) DSN(readOnly bool) string {
	dsn := s.Path + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&_pragma=query_only(1)"
	}
	return dsn
}

func (s *SQLiteStore) Open(ctx context.Context, readOnly bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.DSN(readOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", s.Path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite %s: %w", s.Path, err)
	}
	return db, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return ping(ctx, s)
}
