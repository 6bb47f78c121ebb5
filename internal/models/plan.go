// internal/models/plan.go
package models

import "strings"

// QueryPlan is what the planning step extracts from a model response.
type QueryPlan struct {
	SQL     string `json:"sql"`
	VizCode string `json:"viz_code,omitempty"`
}

// HasVisualization reports whether the plan carries a chart snippet.
func (p QueryPlan) HasVisualization() bool {
	return strings.TrimSpace(p.VizCode) != ""
}
