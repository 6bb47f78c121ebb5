// internal/models/schema.go
package models

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableSchema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

type ColumnDiagnostics struct {
	Name          string        `json:"name"`
	DistinctCount int64         `json:"distinctCount"`
	Samples       []interface{} `json:"samples"`
	Error         string        `json:"error,omitempty"`
}

type TableDiagnostics struct {
	Table     string              `json:"table"`
	TotalRows int64               `json:"totalRows"`
	Columns   []ColumnDiagnostics `json:"columns"`
}
