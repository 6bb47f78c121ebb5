// internal/workers/planning/build-prompt/handler.go
package buildprompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"csv-chat/internal/common/database"
	"csv-chat/internal/common/logger"
)

const (
	TaskType = "build-prompt"
)

var (
	ErrInvalidQuestion = errors.New("INVALID_INPUT")
)

const systemMessage = "You are an expert SQL and data visualization code generator. You answer with a single JSON object and nothing else."

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) execute(input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidQuestion)
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidQuestion)
	}
	if h.config.QuestionMaxLen > 0 && utf8.RuneCountInString(question) > h.config.QuestionMaxLen {
		return nil, fmt.Errorf("%w: question exceeds %d characters", ErrInvalidQuestion, h.config.QuestionMaxLen)
	}

	prompt := h.buildPrompt(question, input.Schema, input.Dialect)
	h.logger.Debug("prompt built", map[string]interface{}{
		"question": logger.Preview(question),
		"length":   len(prompt),
	})
	return &Output{Prompt: prompt, System: systemMessage}, nil
}

func dialectName(d database.Dialect) string {
	if d == database.DialectPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

func (h *Handler) buildPrompt(question, schema string, dialect database.Dialect) string {
	table := h.config.Table
	var parts []string

	parts = append(parts, fmt.Sprintf("Database: %s", dialectName(dialect)))
	parts = append(parts, fmt.Sprintf("Table: %s", table))
	parts = append(parts, "Columns:")
	parts = append(parts, schema)

	parts = append(parts, "\nOutput MUST be a valid JSON object.")
	parts = append(parts, `It must contain "sql": the SQL query.`)
	parts = append(parts, `It may contain "viz_code": a short plotly-style snippet that builds a chart.`)

	parts = append(parts, section("CHART SELECTION RULES"))
	parts = append(parts, "If the user asks for a specific chart type, produce exactly that chart in \"viz_code\":")
	parts = append(parts, `- Bar chart: px.bar. Triggers: "bar", "compare", "distribution by category"`)
	parts = append(parts, `- Pie chart: px.pie. Triggers: "pie", "percentage", "proportion", "share"`)
	parts = append(parts, `- Line chart: px.line. Triggers: "line", "trend", "over time", "time series"`)
	parts = append(parts, `- Scatter plot: px.scatter. Triggers: "scatter", "relationship", "correlation"`)
	parts = append(parts, `- Histogram: px.histogram. Triggers: "histogram", "frequency", "distribution of values"`)
	parts = append(parts, `If the user does not ask for a chart, omit "viz_code" entirely.`)

	parts = append(parts, section("VISUALIZATION RULES"))
	parts = append(parts, "- The query result is available as the table variable df")
	parts = append(parts, "- Use only px (plotly.express) or go (plotly.graph_objects) constructors")
	parts = append(parts, "- Assign the figure to a variable named fig")
	parts = append(parts, "- Reference columns by the names the SQL query returns")
	parts = append(parts, "- No markdown, no backticks, no loops, no function definitions")
	parts = append(parts, "- Include a title and axis labels")

	parts = append(parts, section("STRICT SQL RULES"))
	parts = append(parts, "- The query MUST start with SELECT")
	parts = append(parts, fmt.Sprintf("- Use only the table named %q", table))
	parts = append(parts, "- Write exactly one statement and end it with a semicolon")
	if h.config.RowLimit > 0 {
		parts = append(parts, fmt.Sprintf("- Limit results to %d rows", h.config.RowLimit))
	}
	parts = append(parts, "- Give computed columns short aliases")

	parts = append(parts, section(fmt.Sprintf("PERCENTAGE RULES (%s)", dialectName(dialect))))
	parts = append(parts, "- Do not return a raw COUNT when a percentage is asked for")
	parts = append(parts, fmt.Sprintf("- Compute percentages as COUNT(*) * 100.0 / (SELECT COUNT(*) FROM %s)", table))
	parts = append(parts, "- Multiply by 100.0 before dividing so the division is floating point")

	parts = append(parts, section("OUTPUT RULES"))
	parts = append(parts, "- Do not include explanations or comments")
	parts = append(parts, "- Do not include markdown, backticks or code fences")
	parts = append(parts, "- Output ONLY the JSON object")

	parts = append(parts, "\nUser question:")
	parts = append(parts, question)

	parts = append(parts, "\nExample output when a chart is required:")
	parts = append(parts, exampleOutput(table))
	parts = append(parts, `If no chart is appropriate, omit "viz_code".`)

	return strings.Join(parts, "\n")
}

func section(title string) string {
	return fmt.Sprintf("\n--------------------------------\n%s\n--------------------------------", title)
}

func exampleOutput(table string) string {
	sql := fmt.Sprintf("SELECT category AS cat, COUNT(*) * 100.0 / (SELECT COUNT(*) FROM %[1]s) AS pct FROM %[1]s GROUP BY category LIMIT 100;", table)
	viz := "fig = px.bar(df, x='cat', y='pct', title='Share by category', labels={'pct': 'Percentage'})"
	return fmt.Sprintf("{\n    %q: %q,\n    %q: %q\n}", "sql", sql, "viz_code", viz)
}

// Build returns the user prompt and system message for one question.
func (h *Handler) Build(input *Input) (*Output, error) {
	return h.execute(input)
}
