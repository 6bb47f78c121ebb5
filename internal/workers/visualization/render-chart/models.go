// internal/workers/visualization/render-chart/models.go
package renderchart

import "csv-chat/internal/models"

type Input struct {
	Result  *models.ResultSet `json:"result"`
	VizCode string            `json:"vizCode"`
}

type Output struct {
	Figure *models.Figure `json:"figure"`
	// Form is "snippet" or "spec" (the declarative JSON form).
	Form string `json:"form"`
}

const (
	FormSnippet = "snippet"
	FormSpec    = "spec"
)
