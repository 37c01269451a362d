package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wastewater-ai/internal/ml"

	"github.com/rs/zerolog/log"
)

// Error codes returned in the error envelope.
const (
	CodeModelNotFound      = "MODEL_NOT_FOUND"
	CodeNoCandidateModel   = "NO_CANDIDATE_MODEL"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNoPreviousVersion  = "NO_PREVIOUS_VERSION"
	CodeTimeout            = "TIMEOUT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

var (
	errValidation = errors.New("validation failed")
	errNoStorage  = errors.New("storage is disabled")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

// ErrorResponse is the envelope every failed request receives.
type ErrorResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	ErrorCode  string    `json:"error_code"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	RetryAfter int       `json:"retry_after,omitempty"`
}

// SuccessResponse wraps successful payloads.
type SuccessResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// classify maps an error to its HTTP status and code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errValidation), errors.Is(err, ml.ErrInvalidFeatureValue):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ml.ErrModelNotFound):
		return http.StatusNotFound, CodeModelNotFound
	case errors.Is(err, ml.ErrNoCandidateModel):
		return http.StatusUnprocessableEntity, CodeNoCandidateModel
	case errors.Is(err, ml.ErrNoPreviousVersion):
		return http.StatusConflict, CodeNoPreviousVersion
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, errNoStorage):
		return http.StatusServiceUnavailable, CodeStorageUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	s.metrics.ErrorsInc()

	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("request_id", requestID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("code", code).
		Msg("Request failed")

	writeJSON(w, status, ErrorResponse{
		Success:    false,
		Message:    err.Error(),
		ErrorCode:  code,
		StatusCode: status,
		Timestamp:  s.now().UTC(),
		RequestID:  requestID(r.Context()),
	})
}

func (s *Server) writeOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, SuccessResponse{
		Success:   true,
		Data:      data,
		Timestamp: s.now().UTC(),
		RequestID: requestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
