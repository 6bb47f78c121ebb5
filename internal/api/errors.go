// internal/api/errors.go
package api

import (
	"errors"
	"strings"

	apperrors "csv-chat/internal/common/errors"
	"csv-chat/internal/common/llm"
	describetable "csv-chat/internal/workers/data-access/describe-table"
	ingestcsv "csv-chat/internal/workers/data-access/ingest-csv"
	runsql "csv-chat/internal/workers/data-access/run-sql"
	buildprompt "csv-chat/internal/workers/planning/build-prompt"
	extractplan "csv-chat/internal/workers/planning/extract-plan"
	generateplan "csv-chat/internal/workers/planning/generate-plan"
)

// detail strips the sentinel prefix ("CODE: ") from a wrapped error message.
func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// ClassifyPipelineError maps the sentinels of every pipeline step onto a
// StandardError.
func ClassifyPipelineError(err error) (*apperrors.StandardError, bool) {
	var exhausted *generateplan.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return apperrors.NewRetryExhaustedError(exhausted.Attempts, exhausted.Cause, exhausted.LastResponse), true
	}

	switch {
	case errors.Is(err, buildprompt.ErrInvalidQuestion):
		return apperrors.NewInvalidInputError(detail(err, buildprompt.ErrInvalidQuestion)), true
	case errors.Is(err, describetable.ErrTableNotFound):
		return apperrors.NewInvalidInputError(detail(err, describetable.ErrTableNotFound)), true

	case errors.Is(err, extractplan.ErrEmptyResponse):
		return apperrors.NewEmptyResponseError(), true
	case errors.Is(err, extractplan.ErrUnparseableResponse):
		return apperrors.NewUnparseableResponseError(detail(err, extractplan.ErrUnparseableResponse)), true
	case errors.Is(err, extractplan.ErrTruncatedPlan):
		return apperrors.NewTruncatedPlanError(detail(err, extractplan.ErrTruncatedPlan)), true

	case errors.Is(err, llm.ErrLLMTimeout):
		return apperrors.NewLLMTimeoutError(), true
	case errors.Is(err, llm.ErrUnauthorized):
		return apperrors.NewLLMUnauthorizedError(err), true
	case errors.Is(err, llm.ErrRateLimited):
		return apperrors.NewLLMRateLimitedError(err), true
	case errors.Is(err, llm.ErrLLMRequestFailed):
		return apperrors.NewLLMRequestFailedError(err), true

	case errors.Is(err, runsql.ErrUnsafeQuery):
		return apperrors.NewUnsafeQueryError(detail(err, runsql.ErrUnsafeQuery)), true
	case errors.Is(err, runsql.ErrExecutionFailed):
		return apperrors.NewExecutionFailedError(err), true

	case errors.Is(err, runsql.ErrStoreUnavailable),
		errors.Is(err, describetable.ErrStoreUnavailable),
		errors.Is(err, ingestcsv.ErrStoreUnavailable):
		return apperrors.NewStoreUnavailableError(err), true
	case errors.Is(err, describetable.ErrSchemaIntrospection):
		return apperrors.NewSchemaIntrospectionError(err), true
	case errors.Is(err, ingestcsv.ErrIngestFailed):
		return apperrors.NewIngestFailedError(err), true
	}
	return nil, false
}
