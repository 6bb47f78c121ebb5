// internal/workers/planning/generate-plan/models.go
package generateplan

import "csv-chat/internal/models"

type Input struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	// Schema and Question only feed the cache key.
	Schema   string `json:"schema,omitempty"`
	Question string `json:"question,omitempty"`
}

type Output struct {
	Plan     models.QueryPlan `json:"plan"`
	Attempts int              `json:"attempts"`
	Strategy string           `json:"strategy,omitempty"`
	Cached   bool             `json:"cached"`
}

type retryState struct {
	retried bool
}
