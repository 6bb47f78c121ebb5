// internal/workers/data-access/run-sql/handler.go
package runsql

import (
	"context"
	"database/sql"
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
	TaskType = "run-sql"
)

var (
	ErrUnsafeQuery      = errors.New("UNSAFE_QUERY")
	ErrExecutionFailed  = errors.New("EXECUTION_FAILED")
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

	query := strings.TrimSpace(input.SQL)
	if err := Validate(query); err != nil {
		metrics.QueriesExecuted.WithLabelValues("rejected").Inc()
		h.logger.Warn("rejected statement", map[string]interface{}{
			"sql":    logger.Truncate(query, 100),
			"reason": err.Error(),
		})
		return nil, err
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	db, err := h.store.Open(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			h.logger.Warn("failed to close connection", map[string]interface{}{"error": err})
		}
	}()

	var plan []string
	if h.config.Explain {
		plan = h.explain(ctx, db, query)
	}

	start := time.Now()
	result, err := h.query(ctx, db, query)
	elapsed := time.Since(start)
	metrics.QueryDuration.WithLabelValues(string(h.store.Dialect())).Observe(elapsed.Seconds())
	if err != nil {
		metrics.QueriesExecuted.WithLabelValues("failed").Inc()
		h.logger.Error("query failed", map[string]interface{}{
			"sql":   logger.Preview(query),
			"error": err,
		})
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	metrics.QueriesExecuted.WithLabelValues("ok").Inc()

	h.logger.Info("query succeeded", map[string]interface{}{
		"rows":     result.RowCount(),
		"cols":     len(result.Columns),
		"duration": elapsed.Milliseconds(),
	})
	h.logger.Debug("query result head", map[string]interface{}{
		"columns": result.Columns,
		"rows":    result.Head(h.config.LogRows),
	})

	return &Output{
		Result:             result,
		RowCount:           result.RowCount(),
		QueryPlan:          plan,
		QueryExecutionTime: elapsed.Milliseconds(),
	}, nil
}

// explain asks the store for its plan. A failure is only a warning; the real
// statement will report the same problem.
func (h *Handler) explain(ctx context.Context, db *sql.DB, query string) []string {
	rows, err := db.QueryContext(ctx, h.store.Dialect().ExplainPrefix()+query)
	if err != nil {
		h.logger.Warn("query plan unavailable", map[string]interface{}{"error": err})
		return nil
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		h.logger.Warn("query plan unavailable", map[string]interface{}{"error": err})
		return nil
	}

	plan := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprint(v)
		}
		plan = append(plan, strings.Join(parts, " | "))
	}
	h.logger.Debug("query plan", map[string]interface{}{"plan": plan})
	return plan
}

func (h *Handler) query(ctx context.Context, db *sql.DB, query string) (*models.ResultSet, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (*models.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.ResultSet{Columns: cols, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
