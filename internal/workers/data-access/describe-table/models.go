// internal/workers/data-access/describe-table/models.go
package describetable

import "csv-chat/internal/models"

type Input struct {
	// Table overrides the configured table name when set.
	Table string `json:"table,omitempty"`
}

type Output struct {
	Schema models.TableSchema `json:"schema"`
	// PromptText is one "- name (type)" line per column.
	PromptText string `json:"promptText"`
}
