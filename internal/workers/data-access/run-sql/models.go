// internal/workers/data-access/run-sql/models.go
package runsql

import "csv-chat/internal/models"

type Input struct {
	SQL string `json:"sql"`
}

type Output struct {
	Result             *models.ResultSet `json:"result"`
	RowCount           int               `json:"rowCount"`
	QueryPlan          []string          `json:"queryPlan,omitempty"`
	QueryExecutionTime int64             `json:"queryExecutionTime"` // milliseconds
}
