// internal/workers/visualization/render-chart/handler.go
package renderchart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
	"csv-chat/internal/models"
)

const (
	TaskType = "render-chart"
)

var (
	ErrSandboxFailed = errors.New("SANDBOX_FAILED")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	code := StripImports(input.VizCode)
	if strings.TrimSpace(code) == "" {
		metrics.SandboxRenders.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: no figure produced", ErrSandboxFailed)
	}
	if h.config.MaxSnippetBytes > 0 && len(code) > h.config.MaxSnippetBytes {
		metrics.SandboxRenders.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: snippet exceeds %d bytes", ErrSandboxFailed, h.config.MaxSnippetBytes)
	}

	h.logger.Debug("rendering chart", map[string]interface{}{
		"code": logger.Preview(code),
		"rows": input.Result.RowCount(),
	})

	form := FormSnippet
	var fig *models.Figure
	var err error
	if isChartSpec(code) {
		form = FormSpec
		fig, err = renderChartSpec(input.Result, code)
	} else {
		fig, err = Render(input.Result, code)
	}
	if err != nil {
		metrics.SandboxRenders.WithLabelValues("failed").Inc()
		h.logger.Warn("chart render failed", map[string]interface{}{
			"form":  form,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSandboxFailed, err)
	}

	metrics.SandboxRenders.WithLabelValues("ok").Inc()
	h.logger.Info("chart rendered", map[string]interface{}{
		"form":   form,
		"traces": len(fig.Data),
	})
	return &Output{Figure: fig, Form: form}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Render interprets a chart snippet against rs and returns the figure bound
// to fig.
func Render(rs *models.ResultSet, code string) (*models.Figure, error) {
	code = StripImports(code)
	stmts, err := parse(code)
	if err != nil {
		return nil, err
	}
	in := newInterpreter(rs, code)
	if err := in.run(stmts); err != nil {
		return nil, err
	}
	return in.figure()
}

// Failure builds the payload shown instead of a figure.
func (h *Handler) Failure(err error, code string, rs *models.ResultSet) *models.VisualizationError {
	msg := err.Error()
	msg = strings.TrimPrefix(msg, ErrSandboxFailed.Error()+": ")
	return &models.VisualizationError{
		Message: msg,
		Code:    code,
		Preview: rs.Records(h.config.PreviewRows),
	}
}
