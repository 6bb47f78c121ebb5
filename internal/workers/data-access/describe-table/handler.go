// internal/workers/data-access/describe-table/handler.go
package describetable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"csv-chat/internal/common/database"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/models"
)

const (
	TaskType = "describe-table"
)

var (
	ErrSchemaIntrospection = errors.New("SCHEMA_INTROSPECTION_FAILED")
	ErrTableNotFound       = errors.New("TABLE_NOT_FOUND")
	ErrStoreUnavailable    = errors.New("STORE_UNAVAILABLE")
)

type Handler struct {
	config *Config
	store  database.Store
	logger logger.Logger
}

func NewHandler(config *Config, store database.Store, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) table(input *Input) string {
	if input != nil && input.Table != "" {
		return input.Table
	}
	return h.config.Table
}

func (h *Handler) open(ctx context.Context) (context.Context, context.CancelFunc, *sql.DB, error) {
	cancel := func() {}
	if h.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
	}
	db, err := h.store.Open(ctx, true)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ctx, cancel, db, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	table := h.table(input)

	ctx, cancel, db, err := h.open(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer db.Close()

	columns, err := h.columns(ctx, db, table)
	if err != nil {
		return nil, err
	}

	schema := models.TableSchema{Table: table, Columns: columns}
	h.logger.Info("schema loaded", map[string]interface{}{
		"table":   table,
		"columns": len(columns),
	})
	return &Output{Schema: schema, PromptText: FormatSchema(columns)}, nil
}

func (h *Handler) columns(ctx context.Context, db *sql.DB, table string) ([]models.Column, error) {
	query, args := h.store.Dialect().SchemaQuery(table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaIntrospection, err)
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaIntrospection, err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaIntrospection, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %q does not exist; upload a CSV first", ErrTableNotFound, table)
	}
	return columns, nil
}

// FormatSchema renders columns the way the prompt expects them.
func FormatSchema(columns []models.Column) string {
	lines := make([]string, len(columns))
	for i, c := range columns {
		lines[i] = fmt.Sprintf("- %s (%s)", c.Name, c.Type)
	}
	return strings.Join(lines, "\n")
}

// Diagnose reports the row count and, per column, the distinct count and a
// few non-null samples. A column that cannot be inspected records its error
// and the rest carry on.
func (h *Handler) Diagnose(ctx context.Context, input *Input) (*models.TableDiagnostics, error) {
	table := h.table(input)

	ctx, cancel, db, err := h.open(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer db.Close()

	columns, err := h.columns(ctx, db, table)
	if err != nil {
		return nil, err
	}

	dialect := h.store.Dialect()
	quotedTable := dialect.QuoteIdent(table)

	diag := &models.TableDiagnostics{Table: table}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quotedTable).Scan(&diag.TotalRows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaIntrospection, err)
	}
	h.logger.Info("diagnosing table", map[string]interface{}{
		"table":     table,
		"totalRows": diag.TotalRows,
	})

	for _, c := range columns {
		cd := models.ColumnDiagnostics{Name: c.Name, Samples: []interface{}{}}
		if err := h.inspectColumn(ctx, db, dialect, quotedTable, &cd); err != nil {
			h.logger.Warn("failed to inspect column", map[string]interface{}{
				"column": c.Name,
				"error":  err,
			})
			cd.Error = err.Error()
		}
		diag.Columns = append(diag.Columns, cd)
	}
	return diag, nil
}

func (h *Handler) inspectColumn(ctx context.Context, db *sql.DB, dialect database.Dialect, quotedTable string, cd *models.ColumnDiagnostics) error {
	col := dialect.QuoteIdent(cd.Name)

	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", col, quotedTable)).Scan(&cd.DistinctCount); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %s", col, quotedTable, col, dialect.Placeholder(1)),
		h.config.SampleLimit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return err
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		cd.Samples = append(cd.Samples, v)
	}
	return rows.Err()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
