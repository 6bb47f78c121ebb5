// internal/workers/planning/build-prompt/handler_test.go
package buildprompt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv-chat/internal/common/database"
	"csv-chat/internal/common/logger"
)

func createTestConfig() *Config {
	return &Config{Table: "data", RowLimit: 100, QuestionMaxLen: 50}
}

// ==========================
// Prompt Content Tests
// ==========================

func TestHandler_Build(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	tests := []struct {
		name        string
		input       *Input
		contains    []string
		notContains []string
	}{
		{
			name: "sqlite prompt",
			input: &Input{
				Question: "  Show customers by city as a bar chart  ",
				Schema:   "- name (TEXT)\n- city (TEXT)",
				Dialect:  database.DialectSQLite,
			},
			contains: []string{
				"Database: SQLite",
				"Table: data",
				"- name (TEXT)\n- city (TEXT)",
				"CHART SELECTION RULES",
				"px.bar",
				"px.histogram",
				"Assign the figure to a variable named fig",
				"MUST start with SELECT",
				"Limit results to 100 rows",
				"PERCENTAGE RULES (SQLite)",
				"Output ONLY the JSON object",
				"User question:\nShow customers by city as a bar chart\n",
			},
		},
		{
			name: "postgres prompt",
			input: &Input{
				Question: "How many rows?",
				Schema:   "- id (bigint)",
				Dialect:  database.DialectPostgres,
			},
			contains:    []string{"Database: PostgreSQL", "PERCENTAGE RULES (PostgreSQL)"},
			notContains: []string{"SQLite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.Build(tt.input)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, output.Prompt, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, output.Prompt, s)
			}
			assert.NotEmpty(t, output.System)
		})
	}
}

func TestHandler_Build_ExampleIsValidJSON(t *testing.T) {
	example := exampleOutput("sales")

	var plan map[string]string
	require.NoError(t, json.Unmarshal([]byte(example), &plan))
	assert.True(t, strings.HasPrefix(plan["sql"], "SELECT"))
	assert.Contains(t, plan["sql"], "FROM sales")
	assert.Contains(t, plan["viz_code"], "fig = px.bar(df")
}

func TestHandler_Build_RowLimitDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.RowLimit = 0
	handler := NewHandler(cfg, logger.NewTestLogger(t))

	output, err := handler.Build(&Input{Question: "q", Schema: "- a (TEXT)"})
	require.NoError(t, err)
	assert.NotContains(t, output.Prompt, "Limit results to")
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_Build_InvalidQuestion(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	tests := []struct {
		name  string
		input *Input
	}{
		{"nil input", nil},
		{"empty question", &Input{Question: ""}},
		{"whitespace question", &Input{Question: " \n\t"}},
		{"too long", &Input{Question: strings.Repeat("é", 51)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Build(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuestion))
		})
	}

	_, err := handler.Build(&Input{Question: strings.Repeat("é", 50)})
	assert.NoError(t, err)
}
