package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"csv-chat/internal/common/config"
)

// Dialect captures the few places where SQLite and PostgreSQL differ for the
// single-table workload.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ColumnKind is the storage class inferred for an uploaded column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindReal
)

// ExplainPrefix is prepended to a statement to obtain its query plan.
func (d Dialect) ExplainPrefix() string {
	if d == DialectPostgres {
		return "EXPLAIN "
	}
	return "EXPLAIN QUERY PLAN "
}

// Placeholder returns the bind parameter marker for the i-th (1-based) argument.
func (d Dialect) Placeholder(i int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// QuoteIdent quotes an identifier with double quotes, which both dialects accept.
func (d Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) ColumnType(kind ColumnKind) string {
	switch kind {
	case KindInteger:
		if d == DialectPostgres {
			return "BIGINT"
		}
		return "INTEGER"
	case KindReal:
		if d == DialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	default:
		return "TEXT"
	}
}

// SchemaQuery lists (name, type) pairs for table in declaration order.
func (d Dialect) SchemaQuery(table string) (string, []interface{}) {
	if d == DialectPostgres {
		return `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`, []interface{}{table}
	}
	return `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, []interface{}{table}
}

// Store hands out short-lived connections to the uploaded table. Every
// caller closes what it opens; nothing is pooled across questions.
type Store interface {
	Dialect() Dialect
	Open(ctx context.Context, readOnly bool) (*sql.DB, error)
	Ping(ctx context.Context) error
}

// NewStore picks the backend named by cfg.Driver.
func NewStore(cfg config.StoreConfig, pg config.PostgresConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLite(cfg.Path), nil
	case config.DriverPostgres:
		return NewPostgres(pg), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func ping(ctx context.Context, s Store) error {
	db, err := s.Open(ctx, true)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
