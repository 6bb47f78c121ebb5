// internal/workers/planning/extract-plan/models.go
package extractplan

import "csv-chat/internal/models"

type Input struct {
	Response string `json:"response"`
}

type Output struct {
	Plan       models.QueryPlan `json:"plan"`
	Strategy   string           `json:"strategy"`
	Normalized string           `json:"normalized"`
}

// Outcome is the tag a strategy attaches to its verdict.
type Outcome string

const (
	OutcomeUndecided Outcome = "undecided"
	OutcomePlan      Outcome = "plan"
	OutcomeRetry     Outcome = "retry"
	OutcomeFail      Outcome = "fail"
)

type decision struct {
	outcome Outcome
	plan    models.QueryPlan
	reason  string
}
