package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// Classifier turns a package-level sentinel error into a StandardError. It
// returns false when it does not recognise err.
type Classifier func(err error) (*StandardError, bool)

// ErrorHandler normalizes pipeline errors and writes them to HTTP clients.
type ErrorHandler struct {
	logger      Logger
	classifiers []Classifier
}

func NewErrorHandler(logger Logger, classifiers ...Classifier) *ErrorHandler {
	return &ErrorHandler{logger: logger, classifiers: classifiers}
}

// Normalize returns err as a StandardError, falling back to INTERNAL_ERROR.
func (h *ErrorHandler) Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	for _, classify := range h.classifiers {
		if se, ok := classify(err); ok {
			return se
		}
	}
	return NewInternalError(err)
}

// WriteHTTP logs err and answers with its JSON form and mapped status.
func (h *ErrorHandler) WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := h.Normalize(err)
	status := HTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": stdErr,
	})
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"status":        status,
	}
	if r != nil {
		fields["method"] = r.Method
		fields["path"] = r.URL.Path
	}
	h.logger.Error("request failed", fields)
}
