// internal/workers/data-access/describe-table/handler_test.go
package describetable

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
	"csv-chat/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type mockStore struct {
	db  *sql.DB
	err error
}

func (m *mockStore) Dialect() database.Dialect { return database.DialectSQLite }

func (m *mockStore) Open(ctx context.Context, readOnly bool) (*sql.DB, error) {
	return m.db, m.err
}

func (m *mockStore) Ping(ctx context.Context) error { return m.err }

func createTestConfig() *Config {
	return &Config{Table: "data", SampleLimit: 2, Timeout: 5 * time.Second}
}

func seededStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store := database.NewSQLite(filepath.Join(t.TempDir(), "data.db"))
	db, err := store.Open(context.Background(), false)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE data ("name" TEXT, "score" INTEGER, "ratio" REAL)`,
		`INSERT INTO data VALUES ('a', 1, 0.5), ('b', 1, NULL), ('c', 2, 1.5), (NULL, 3, 2.5)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return store
}

// ==========================
// Schema Tests
// ==========================

func TestFormatSchema(t *testing.T) {
	text := FormatSchema([]models.Column{{Name: "name", Type: "TEXT"}, {Name: "score", Type: "INTEGER"}})
	assert.Equal(t, "- name (TEXT)\n- score (INTEGER)", text)
	assert.Equal(t, "", FormatSchema(nil))
}

func TestHandler_Execute_SQLite(t *testing.T) {
	handler := NewHandler(createTestConfig(), seededStore(t), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, "data", output.Schema.Table)
	assert.Equal(t, []models.Column{
		{Name: "name", Type: "TEXT"},
		{Name: "score", Type: "INTEGER"},
		{Name: "ratio", Type: "REAL"},
	}, output.Schema.Columns)
	assert.Equal(t, "- name (TEXT)\n- score (INTEGER)\n- ratio (REAL)", output.PromptText)
}

func TestHandler_Execute_MissingTable(t *testing.T) {
	store := database.NewSQLite(filepath.Join(t.TempDir(), "empty.db"))
	handler := NewHandler(createTestConfig(), store, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestHandler_Execute_StoreUnavailable(t *testing.T) {
	handler := NewHandler(createTestConfig(), &mockStore{err: errors.New("locked")}, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestHandler_Execute_IntrospectionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	handler := NewHandler(createTestConfig(), &mockStore{db: db}, logger.NewTestLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, type FROM pragma_table_info(?) ORDER BY cid")).
		WithArgs("data").
		WillReturnError(errors.New("database disk image is malformed"))
	mock.ExpectClose()

	_, err = handler.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaIntrospection))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Diagnostics Tests
// ==========================

func TestHandler_Diagnose_SQLite(t *testing.T) {
	handler := NewHandler(createTestConfig(), seededStore(t), logger.NewTestLogger(t))

	diag, err := handler.Diagnose(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), diag.TotalRows)
	require.Len(t, diag.Columns, 3)

	name := diag.Columns[0]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, int64(3), name.DistinctCount)
	assert.Len(t, name.Samples, 2)
	assert.Empty(t, name.Error)

	score := diag.Columns[1]
	assert.Equal(t, int64(3), score.DistinctCount)

	ratio := diag.Columns[2]
	assert.Equal(t, int64(3), ratio.DistinctCount)
	for _, v := range ratio.Samples {
		assert.NotNil(t, v)
	}
}

func TestHandler_Diagnose_ColumnErrorIsRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	handler := NewHandler(createTestConfig(), &mockStore{db: db}, logger.NewTestLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, type FROM pragma_table_info(?) ORDER BY cid")).
		WithArgs("data").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("city", "TEXT").
			AddRow("pop", "INTEGER"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "data"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(10)))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT "city") FROM "data"`)).
		WillReturnError(errors.New("boom"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT "pop") FROM "data"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "pop" FROM "data" WHERE "pop" IS NOT NULL LIMIT ?`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"pop"}).AddRow(int64(100)).AddRow(int64(200)))
	mock.ExpectClose()

	diag, err := handler.Diagnose(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, int64(10), diag.TotalRows)
	assert.Equal(t, "boom", diag.Columns[0].Error)
	assert.Equal(t, int64(7), diag.Columns[1].DistinctCount)
	assert.Equal(t, []interface{}{int64(100), int64(200)}, diag.Columns[1].Samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}
