// internal/workers/planning/extract-plan/handler.go
package extractplan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
)

const (
	TaskType = "extract-plan"
)

var (
	ErrEmptyResponse       = errors.New("EMPTY_RESPONSE")
	ErrUnparseableResponse = errors.New("UNPARSEABLE_RESPONSE")
	ErrTruncatedPlan       = errors.New("TRUNCATED_PLAN")
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

	raw := strings.TrimSpace(input.Response)
	if raw == "" {
		metrics.PlanExtractions.WithLabelValues("none", string(OutcomeFail)).Inc()
		return nil, ErrEmptyResponse
	}

	normalized := Normalize(raw)
	if normalized == "" {
		metrics.PlanExtractions.WithLabelValues("none", string(OutcomeFail)).Inc()
		return nil, fmt.Errorf("%w: only a code fence", ErrEmptyResponse)
	}

	h.logger.Debug("extracting plan", map[string]interface{}{
		"preview": logger.Preview(normalized),
	})

	for _, s := range h.strategies() {
		d := s.apply(raw, normalized)
		if d.outcome == OutcomeUndecided {
			continue
		}
		metrics.PlanExtractions.WithLabelValues(s.name, string(d.outcome)).Inc()

		switch d.outcome {
		case OutcomePlan:
			plan := d.plan
			if h.config.StripVizImports && plan.VizCode != "" {
				plan.VizCode = stripVizImports(plan.VizCode)
			}
			h.logger.Info("plan extracted", map[string]interface{}{
				"strategy": s.name,
				"sql":      logger.Preview(plan.SQL),
				"hasViz":   plan.HasVisualization(),
			})
			return &Output{Plan: plan, Strategy: s.name, Normalized: normalized}, nil
		case OutcomeRetry:
			h.logger.Warn("plan looks truncated", map[string]interface{}{
				"strategy": s.name,
				"reason":   d.reason,
				"preview":  logger.Preview(normalized),
			})
			return nil, fmt.Errorf("%w: %s", ErrTruncatedPlan, d.reason)
		case OutcomeFail:
			h.logger.Warn("response is neither a JSON plan nor SQL", map[string]interface{}{
				"strategy": s.name,
				"preview":  logger.Preview(normalized),
			})
			return nil, fmt.Errorf("%w: %s", ErrUnparseableResponse, logger.Truncate(normalized, 200))
		}
	}

	metrics.PlanExtractions.WithLabelValues("none", string(OutcomeFail)).Inc()
	return nil, fmt.Errorf("%w: %s", ErrUnparseableResponse, logger.Truncate(normalized, 200))
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// IsExtractionError reports whether err is one the plan coordinator may
// answer with a stricter re-ask.
func IsExtractionError(err error) bool {
	return errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, ErrUnparseableResponse) ||
		errors.Is(err, ErrTruncatedPlan)
}
