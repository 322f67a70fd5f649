package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kalambet/sprout/internal/assistant"
	"github.com/kalambet/sprout/internal/diagnosis"
	"github.com/kalambet/sprout/internal/invoker"
)

const (
	errTypeInvalidRequest  = "invalid_request"
	errTypeTooLarge        = "request_too_large"
	errTypeAuth            = "authentication_error"
	errTypeUnavailable     = "provider_unavailable"
	errTypeMalformedOutput = "malformed_model_output"
	errTypeTimeout         = "timeout"
	errTypeInternal        = "internal_error"
)

const (
	msgUnavailable     = "The plant assistant is temporarily unavailable. Please try again later."
	msgMalformedOutput = "The model returned a response that could not be understood. Please try again."
	msgTimeout         = "The request was cancelled before the model answered."
	msgInternal        = "An unexpected error occurred."
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, errorResponse{
		Success:   false,
		Error:     fmt.Sprintf(format, args...),
		ErrorType: errType,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// classify maps a service error to its status code, error type and the
// message that is safe to return. Provider details stay in the logs.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, assistant.ErrInvalidInput):
		return http.StatusBadRequest, errTypeInvalidRequest, err.Error()
	case errors.Is(err, invoker.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, errTypeUnavailable, msgUnavailable
	case errors.Is(err, diagnosis.ErrMalformedOutput):
		return http.StatusBadGateway, errTypeMalformedOutput, msgMalformedOutput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errTypeTimeout, msgTimeout
	default:
		return http.StatusInternalServerError, errTypeInternal, msgInternal
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, errType, msg := classify(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error_type", errType,
			"error", err,
		)
	}
	httpError(w, code, errType, "%s", msg)
}
