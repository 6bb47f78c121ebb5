// internal/workers/planning/generate-plan/handler.go
package generateplan

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"csv-chat/internal/common/llm"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
	extractplan "csv-chat/internal/workers/planning/extract-plan"
)

const (
	TaskType = "generate-plan"
)

var (
	ErrRetryExhausted = errors.New("RETRY_EXHAUSTED")
)

// StrictInstruction is appended to the prompt for the one re-ask.
const StrictInstruction = `

IMPORTANT: your previous answer could not be used.
Reply with ONLY a JSON object of the form {"sql": "SELECT ... FROM data ...;"}.
The query must be a complete SELECT statement with a FROM clause and must end with a semicolon.
Do not add any text before or after the JSON object.`

// RetryExhaustedError is returned when the stricter re-ask also fails.
type RetryExhaustedError struct {
	Attempts     int
	LastResponse string // bounded preview
	Cause        error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: no usable plan after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Cause}
}

type Handler struct {
	config    *Config
	llm       llm.Completer
	extractor *extractplan.Handler
	cache     *planCache
	logger    logger.Logger
}

// NewHandler wires the coordinator. rdb may be nil, which disables caching.
func NewHandler(config *Config, completer llm.Completer, extractor *extractplan.Handler, rdb *redis.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		llm:       completer,
		extractor: extractor,
		cache: &planCache{
			client: rdb,
			ttl:    config.CacheTTL,
			prefix: config.CachePrefix,
			logger: l,
		},
		logger: l,
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	key := CacheKey(h.config.CachePrefix, h.config.Model, input.Schema, input.Question)
	if plan, ok := h.cache.get(ctx, key); ok {
		h.logger.Info("plan served from cache", map[string]interface{}{"sql": logger.Preview(plan.SQL)})
		return &Output{Plan: *plan, Cached: true}, nil
	}

	state := retryState{}
	prompt := input.Prompt
	for attempt := 1; ; attempt++ {
		raw, err := h.llm.Complete(ctx, prompt, input.System)
		if err != nil {
			// Transport failures are not the model's fault; no re-ask.
			return nil, err
		}

		extracted, err := h.extractor.Execute(ctx, &extractplan.Input{Response: raw})
		if err == nil {
			h.cache.set(ctx, key, extracted.Plan)
			return &Output{
				Plan:     extracted.Plan,
				Attempts: attempt,
				Strategy: extracted.Strategy,
			}, nil
		}
		if !extractplan.IsExtractionError(err) {
			return nil, err
		}

		if state.retried {
			h.logger.Error("plan retry exhausted", map[string]interface{}{
				"attempts": attempt,
				"error":    err,
				"preview":  logger.Preview(raw),
			})
			return nil, &RetryExhaustedError{
				Attempts:     attempt,
				LastResponse: logger.Preview(raw),
				Cause:        err,
			}
		}

		state.retried = true
		metrics.PlanRetries.WithLabelValues(retryReason(err)).Inc()
		h.logger.Warn("unusable plan, re-asking with stricter instructions", map[string]interface{}{
			"attempt": attempt,
			"error":   err,
		})
		prompt = input.Prompt + StrictInstruction
	}
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, extractplan.ErrTruncatedPlan):
		return "truncated"
	case errors.Is(err, extractplan.ErrEmptyResponse):
		return "empty"
	default:
		return "unparseable"
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
