// internal/workers/conversation/answer-question/handler.go
package answerquestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
	"csv-chat/internal/common/observability"
	"csv-chat/internal/models"
	describetable "csv-chat/internal/workers/data-access/describe-table"
	runsql "csv-chat/internal/workers/data-access/run-sql"
	buildprompt "csv-chat/internal/workers/planning/build-prompt"
	generateplan "csv-chat/internal/workers/planning/generate-plan"
	renderchart "csv-chat/internal/workers/visualization/render-chart"
)

const (
	TaskType = "answer-question"
)

type SchemaDescriber interface {
	Execute(ctx context.Context, input *describetable.Input) (*describetable.Output, error)
}

type PromptBuilder interface {
	Build(input *buildprompt.Input) (*buildprompt.Output, error)
}

type PlanGenerator interface {
	Execute(ctx context.Context, input *generateplan.Input) (*generateplan.Output, error)
}

type QueryRunner interface {
	Execute(ctx context.Context, input *runsql.Input) (*runsql.Output, error)
}

type ChartRenderer interface {
	Execute(ctx context.Context, input *renderchart.Input) (*renderchart.Output, error)
	Failure(err error, code string, rs *models.ResultSet) *models.VisualizationError
}

// Steps are the pipeline stages a question flows through, in order.
type Steps struct {
	Schema SchemaDescriber
	Prompt PromptBuilder
	Plan   PlanGenerator
	Query  QueryRunner
	Chart  ChartRenderer
}

type Handler struct {
	config *Config
	steps  Steps
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, steps Steps, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		steps:  steps,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", buildprompt.ErrInvalidQuestion)
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	metrics.QuestionsActive.Inc()
	defer metrics.QuestionsActive.Dec()

	started := time.Now()
	output := &Output{
		QuestionID: uuid.New().String(),
		Question:   strings.TrimSpace(input.Question),
		Durations:  map[string]int64{},
	}
	log := h.logger.WithFields(map[string]interface{}{"questionId": output.QuestionID})
	log.Info("answering question", map[string]interface{}{"question": logger.Preview(output.Question)})

	err := h.answer(ctx, log, output)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case output.VisualizationError != nil:
		status = "degraded"
	}
	output.Durations["total"] = time.Since(started).Milliseconds()
	h.obs.RecordQuestion(ctx, status, time.Since(started))

	if err != nil {
		log.Error("question failed", map[string]interface{}{
			"error":    err,
			"duration": output.Durations["total"],
		})
		return nil, err
	}
	log.Info("question answered", map[string]interface{}{
		"status":   status,
		"rows":     output.RowCount,
		"attempts": output.Attempts,
		"duration": output.Durations["total"],
	})
	return output, nil
}

func (h *Handler) answer(ctx context.Context, log logger.Logger, output *Output) error {
	var schema *describetable.Output
	if err := timed(output, "schema", func() (err error) {
		schema, err = h.steps.Schema.Execute(ctx, &describetable.Input{Table: h.config.Table})
		return err
	}); err != nil {
		return err
	}

	prompt, err := h.steps.Prompt.Build(&buildprompt.Input{
		Question: output.Question,
		Schema:   schema.PromptText,
		Dialect:  h.config.Dialect,
	})
	if err != nil {
		return err
	}

	var plan *generateplan.Output
	if err := timed(output, "plan", func() (err error) {
		plan, err = h.steps.Plan.Execute(ctx, &generateplan.Input{
			Prompt:   prompt.Prompt,
			System:   prompt.System,
			Schema:   schema.PromptText,
			Question: output.Question,
		})
		return err
	}); err != nil {
		return err
	}
	output.Plan = plan.Plan
	output.Attempts = plan.Attempts
	output.Cached = plan.Cached

	var result *runsql.Output
	if err := timed(output, "query", func() (err error) {
		result, err = h.steps.Query.Execute(ctx, &runsql.Input{SQL: plan.Plan.SQL})
		return err
	}); err != nil {
		return err
	}
	output.Columns = result.Result.Columns
	output.Rows = result.Result.Rows
	output.RowCount = result.RowCount
	output.QueryPlan = result.QueryPlan

	if !plan.Plan.HasVisualization() {
		return nil
	}

	var chart *renderchart.Output
	err = timed(output, "chart", func() (err error) {
		chart, err = h.steps.Chart.Execute(ctx, &renderchart.Input{Result: result.Result, VizCode: plan.Plan.VizCode})
		return err
	})
	if err != nil {
		if !errors.Is(err, renderchart.ErrSandboxFailed) {
			return err
		}
		log.Warn("visualization failed; returning the table only", map[string]interface{}{"error": err})
		output.VisualizationError = h.steps.Chart.Failure(err, plan.Plan.VizCode, result.Result)
		return nil
	}
	output.Figure = chart.Figure
	return nil
}

func timed(output *Output, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	output.Durations[step] = time.Since(start).Milliseconds()
	return err
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
