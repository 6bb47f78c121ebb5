// internal/workers/conversation/answer-question/models.go
package answerquestion

import "csv-chat/internal/models"

type Input struct {
	Question string `json:"question"`
}

type Output struct {
	QuestionID string           `json:"questionId"`
	Question   string           `json:"question"`
	Plan       models.QueryPlan `json:"plan"`
	Attempts   int              `json:"attempts"`
	Cached     bool             `json:"cached"`

	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"rowCount"`
	QueryPlan []string        `json:"queryPlan,omitempty"`

	Figure             *models.Figure             `json:"figure,omitempty"`
	VisualizationError *models.VisualizationError `json:"visualizationError,omitempty"`

	// Durations holds per-step timings in milliseconds.
	Durations map[string]int64 `json:"durations"`
}

// Result returns the rows as a ResultSet.
func (o *Output) Result() *models.ResultSet {
	return &models.ResultSet{Columns: o.Columns, Rows: o.Rows}
}
