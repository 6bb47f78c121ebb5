// internal/models/figure.go
package models

// Trace is one plotly trace, keyed the way plotly.js expects ("type", "x", ...).
type Trace map[string]interface{}

// Figure is a plotly-compatible chart document.
type Figure struct {
	Data   []Trace                `json:"data"`
	Layout map[string]interface{} `json:"layout"`
}

func NewFigure() *Figure {
	return &Figure{Data: []Trace{}, Layout: map[string]interface{}{}}
}

// VisualizationError replaces the figure when the chart snippet fails.
type VisualizationError struct {
	Message string                   `json:"message"`
	Code    string                   `json:"code"`
	Preview []map[string]interface{} `json:"preview"`
}
