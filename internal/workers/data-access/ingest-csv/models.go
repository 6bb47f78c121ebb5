// internal/workers/data-access/ingest-csv/models.go
package ingestcsv

import "csv-chat/internal/models"

type Input struct {
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"-"`
}

type Output struct {
	Table    string                   `json:"table"`
	RowCount int                      `json:"rowCount"`
	Columns  []models.Column          `json:"columns"`
	Encoding string                   `json:"encoding"`
	Preview  []map[string]interface{} `json:"preview"`
	// Replaced is false when the upload had no data rows and the store was left alone.
	Replaced bool `json:"replaced"`
}

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)
