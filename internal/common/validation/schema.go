package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidDocument = errors.New("INVALID_DOCUMENT")

// ChartKinds lists the chart types the JSON chart form accepts.
var ChartKinds = []string{"bar", "line", "scatter", "pie", "histogram", "area"}

// PlanSchema is the shape of a decoded {"sql": ..., "viz_code": ...} plan.
// Only sql is constrained; a viz_code that is not a string is dropped later.
var PlanSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"sql"},
	"properties": map[string]interface{}{
		"sql": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
			"pattern":   `\S`,
		},
	},
}

// ChartSpecSchema describes the declarative chart form.
var ChartSpecSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"kind"},
	"properties": map[string]interface{}{
		"kind":   map[string]interface{}{"enum": toInterfaces(ChartKinds)},
		"x":      map[string]interface{}{"type": "string"},
		"y":      map[string]interface{}{"type": "string"},
		"names":  map[string]interface{}{"type": "string"},
		"values": map[string]interface{}{"type": "string"},
		"color":  map[string]interface{}{"type": "string"},
		"title":  map[string]interface{}{"type": "string"},
		"labels": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "string"},
		},
	},
	"additionalProperties": false,
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validate checks document against schema. An error is returned only when the
// schema itself cannot be compiled.
func Validate(schema map[string]interface{}, document interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// Check is Validate collapsed into a single error wrapping ErrInvalidDocument.
func Check(schema map[string]interface{}, document interface{}) error {
	result, err := Validate(schema, document)
	if err != nil {
		return err
	}
	if result.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, result.Summary())
}

func ValidatePlan(document map[string]interface{}) error {
	return Check(PlanSchema, document)
}

func ValidateChartSpec(document map[string]interface{}) error {
	return Check(ChartSpecSchema, document)
}

func (r *ValidationResult) Summary() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
