// internal/workers/planning/build-prompt/models.go
package buildprompt

import "csv-chat/internal/common/database"

type Input struct {
	Question string           `json:"question"`
	Schema   string           `json:"schema"` // "- name (type)" lines
	Dialect  database.Dialect `json:"dialect"`
}

type Output struct {
	Prompt string `json:"prompt"`
	System string `json:"system"`
}
