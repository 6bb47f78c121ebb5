// internal/workers/data-access/ingest-csv/handler.go
package ingestcsv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"csv-chat/internal/common/database"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
	"csv-chat/internal/models"
)

const (
	TaskType = "ingest-csv"
)

var (
	ErrIngestFailed     = errors.New("INGEST_FAILED")
	ErrStoreUnavailable = errors.New("STORE_UNAVAILABLE")
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	data, encoding, err := Decode(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrIngestFailed, err)
	}

	parsed, err := parseCSV(data, h.config.Comma)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}

	output := &Output{
		Table:    h.config.Table,
		Encoding: encoding,
		Columns:  []models.Column{},
		Preview:  []map[string]interface{}{},
	}

	if len(parsed.header) == 0 || len(parsed.rows) == 0 {
		h.logger.Warn("upload has no data rows; store left unchanged", map[string]interface{}{
			"filename": input.Filename,
			"columns":  len(parsed.header),
		})
		return output, nil
	}

	dialect := h.store.Dialect()
	kinds := inferKinds(parsed)
	for i, name := range parsed.header {
		output.Columns = append(output.Columns, models.Column{Name: name, Type: dialect.ColumnType(kinds[i])})
	}

	rs := &models.ResultSet{Columns: parsed.header, Rows: make([][]interface{}, len(parsed.rows))}
	for i, row := range parsed.rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = convert(cell, kinds[j])
		}
		rs.Rows[i] = values
	}

	h.logger.Info("writing upload", map[string]interface{}{
		"filename": input.Filename,
		"table":    h.config.Table,
		"rows":     rs.RowCount(),
		"columns":  parsed.header,
		"encoding": encoding,
	})

	start := time.Now()
	if err := h.replaceTable(ctx, output.Columns, rs); err != nil {
		return nil, err
	}

	metrics.IngestedRows.WithLabelValues(encoding).Add(float64(rs.RowCount()))
	h.logger.Info("upload written", map[string]interface{}{
		"table":    h.config.Table,
		"rows":     rs.RowCount(),
		"duration": time.Since(start).Milliseconds(),
	})

	output.RowCount = rs.RowCount()
	output.Preview = rs.Records(h.config.PreviewRows)
	output.Replaced = true
	return output, nil
}

// replaceTable drops and recreates the table and loads every row in one
// transaction, so a failed upload leaves the previous table in place.
func (h *Handler) replaceTable(ctx context.Context, columns []models.Column, rs *models.ResultSet) error {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	db, err := h.store.Open(ctx, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIngestFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	dialect := h.store.Dialect()
	table := dialect.QuoteIdent(h.config.Table)

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("%w: drop table: %v", ErrIngestFailed, err)
	}
	if _, err := tx.ExecContext(ctx, createStatement(dialect, table, columns)); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrIngestFailed, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(dialect, table, columns))
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrIngestFailed, err)
	}
	defer stmt.Close()

	for i, row := range rs.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrIngestFailed, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIngestFailed, err)
	}
	return nil
}

func createStatement(dialect database.Dialect, table string, columns []models.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = dialect.QuoteIdent(c.Name) + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

func insertStatement(dialect database.Dialect, table string, columns []models.Column) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = dialect.QuoteIdent(c.Name)
		marks[i] = dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
