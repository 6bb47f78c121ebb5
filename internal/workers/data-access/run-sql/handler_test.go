// internal/workers/data-access/run-sql/handler_test.go
package runsql

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv-chat/internal/common/database"
	"csv-chat/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type mockStore struct {
	db      *sql.DB
	err     error
	dialect database.Dialect
	opened  int
}

func (m *mockStore) Dialect() database.Dialect { return m.dialect }

func (m *mockStore) Open(ctx context.Context, readOnly bool) (*sql.DB, error) {
	m.opened++
	if !readOnly {
		return nil, errors.New("run-sql must open read-only connections")
	}
	return m.db, m.err
}

func (m *mockStore) Ping(ctx context.Context) error { return m.err }

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
		LogRows: 5,
		Explain: true,
	}
}

func newMockHandler(t *testing.T, dialect database.Dialect) (*Handler, sqlmock.Sqlmock, *mockStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := &mockStore{db: db, dialect: dialect}
	return NewHandler(createTestConfig(), store, logger.NewTestLogger(t)), mock, store
}

// ==========================
// Guard Tests
// ==========================

func TestStripLeadingComments(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"no comments", "  SELECT 1;", "SELECT 1;"},
		{"line comments", "-- first\n  -- second\nSELECT 1;", "SELECT 1;"},
		{"block comment", "/* note */ SELECT 1;", "SELECT 1;"},
		{"line then block", "-- a\n/* b\n c */\nselect 1;", "select 1;"},
		{"only one block stripped", "/* a */ /* b */ SELECT 1;", "/* b */ SELECT 1;"},
		{"unterminated block", "/* never closed SELECT 1;", ""},
		{"comment only", "-- nothing else", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripLeadingComments(tt.sql))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{"select", "SELECT name FROM data;", ""},
		{"lower case", "select name from data", ""},
		{"commented select", "-- top products\nSELECT name FROM data;", ""},
		{"semicolon in literal", "SELECT * FROM data WHERE note = 'a;b';", ""},
		{"semicolon in identifier", `SELECT "x;y" FROM data;`, ""},
		{"trailing comment after statement", "SELECT 1; -- done", ""},
		{"drop", "DROP TABLE data;", reasonNotSelect},
		{"delete behind comment", "-- harmless\nDELETE FROM data;", reasonNotSelect},
		{"insert behind block", "/* select */ INSERT INTO data VALUES (1);", reasonNotSelect},
		{"update", "  update data set a = 1", reasonNotSelect},
		{"with clause", "WITH t AS (SELECT 1) SELECT * FROM t;", reasonNotSelect},
		{"empty", "", reasonNotSelect},
		{"stacked statements", "SELECT 1; DROP TABLE data;", reasonMultiStatements},
		{"stacked after literal", "SELECT ';'; DELETE FROM data", reasonMultiStatements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sql)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafeQuery))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Messages(t *testing.T) {
	err := Validate("DELETE FROM data;")
	require.Error(t, err)
	assert.Equal(t, "UNSAFE_QUERY: only SELECT queries are allowed", err.Error())

	err = Validate("SELECT 1; SELECT 2;")
	require.Error(t, err)
	assert.Equal(t, "UNSAFE_QUERY: only a single statement is allowed", err.Error())
}

func TestCountStatements(t *testing.T) {
	assert.Equal(t, 0, CountStatements("  ;; "))
	assert.Equal(t, 1, CountStatements("SELECT 1;;"))
	assert.Equal(t, 1, CountStatements("SELECT '--;' /* ; */ FROM data"))
	assert.Equal(t, 1, CountStatements("SELECT 'it''s; fine' FROM data;"))
	assert.Equal(t, 2, CountStatements("SELECT 1; SELECT 2"))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	handler, mock, store := newMockHandler(t, database.DialectSQLite)

	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN QUERY PLAN SELECT name, total FROM data;")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent", "notused", "detail"}).
			AddRow(int64(2), int64(0), int64(0), "SCAN data"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, total FROM data;")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "total"}).
			AddRow([]byte("alice"), int64(3)).
			AddRow("bob", nil))
	mock.ExpectClose()

	output, err := handler.Execute(context.Background(), &Input{SQL: "  SELECT name, total FROM data;\n"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "total"}, output.Result.Columns)
	assert.Equal(t, [][]interface{}{{"alice", int64(3)}, {"bob", nil}}, output.Result.Rows)
	assert.Equal(t, 2, output.RowCount)
	assert.Equal(t, []string{"2 | 0 | 0 | SCAN data"}, output.QueryPlan)
	assert.GreaterOrEqual(t, output.QueryExecutionTime, int64(0))
	assert.Equal(t, 1, store.opened)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_PostgresExplain(t *testing.T) {
	handler, mock, _ := newMockHandler(t, database.DialectPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN SELECT 1;")).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow("Result  (cost=0.00..0.01 rows=1 width=4)"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1;")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
	mock.ExpectClose()

	output, err := handler.Execute(context.Background(), &Input{SQL: "SELECT 1;"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Result  (cost=0.00..0.01 rows=1 width=4)"}, output.QueryPlan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ExplainFailureIsWarning(t *testing.T) {
	handler, mock, _ := newMockHandler(t, database.DialectSQLite)

	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN QUERY PLAN SELECT a FROM data;")).
		WillReturnError(errors.New("explain not supported"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT a FROM data;")).
		WillReturnRows(sqlmock.NewRows([]string{"a"}))
	mock.ExpectClose()

	output, err := handler.Execute(context.Background(), &Input{SQL: "SELECT a FROM data;"})
	require.NoError(t, err)
	assert.Empty(t, output.QueryPlan)
	assert.Equal(t, 0, output.RowCount)
	assert.NotNil(t, output.Result.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ExplainDisabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	config := createTestConfig()
	config.Explain = false
	handler := NewHandler(config, &mockStore{db: db, dialect: database.DialectSQLite}, logger.NewTestLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT a FROM data;")).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow("x"))
	mock.ExpectClose()

	_, err = handler.Execute(context.Background(), &Input{SQL: "SELECT a FROM data;"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_RejectsBeforeConnecting(t *testing.T) {
	handler, mock, store := newMockHandler(t, database.DialectSQLite)

	_, err := handler.Execute(context.Background(), &Input{SQL: "DELETE FROM data;"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeQuery))
	assert.Equal(t, 0, store.opened)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_StoreError(t *testing.T) {
	handler, mock, _ := newMockHandler(t, database.DialectSQLite)

	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN QUERY PLAN SELECT missing FROM data;")).
		WillReturnError(errors.New("no such column: missing"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT missing FROM data;")).
		WillReturnError(errors.New("no such column: missing"))
	mock.ExpectClose()

	_, err := handler.Execute(context.Background(), &Input{SQL: "SELECT missing FROM data;"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailed))
	assert.Contains(t, err.Error(), "no such column: missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_StoreUnavailable(t *testing.T) {
	store := &mockStore{err: errors.New("disk I/O error"), dialect: database.DialectSQLite}
	handler := NewHandler(createTestConfig(), store, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{SQL: "SELECT 1;"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler, _, _ := newMockHandler(t, database.DialectSQLite)
	_, err := handler.Execute(context.Background(), nil)
	assert.Error(t, err)
}

// ==========================
// SQLite Round Trip Tests
// ==========================

func TestHandler_Execute_SQLiteSelectOne(t *testing.T) {
	store := database.NewSQLite(filepath.Join(t.TempDir(), "data.db"))
	handler := NewHandler(createTestConfig(), store, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{SQL: "SELECT 1;"})
	require.NoError(t, err)
	require.Len(t, output.Result.Columns, 1)
	require.Len(t, output.Result.Rows, 1)
	assert.Equal(t, int64(1), output.Result.Rows[0][0])
}

func TestHandler_Execute_SQLiteUnknownTable(t *testing.T) {
	store := database.NewSQLite(filepath.Join(t.TempDir(), "data.db"))
	handler := NewHandler(createTestConfig(), store, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{SQL: "SELECT * FROM data;"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailed))
	assert.Contains(t, err.Error(), "no such table")
}
