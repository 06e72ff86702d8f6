package api

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/datanorm"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
)

// statusFor maps service and parser errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	var badCSV *csv.ParseError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, datanorm.ErrTooManyRows):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, report.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, report.ErrInvalidInput),
		errors.Is(err, report.ErrEmptyReport),
		errors.Is(err, analysis.ErrInvalidParams),
		errors.Is(err, datanorm.ErrEmptyFile),
		errors.Is(err, datanorm.ErrNoSearchTermColumn),
		errors.As(err, &badCSV):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with the status statusFor picks. 4xx
// messages are returned as is; 5xx are logged in full and replaced by a
// public-safe message.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "org_id", orgID(r),
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	respondError(w, code, safeErrorMessage(code, err))
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
// For 400-level errors, the original message is typically fine (user input issues).
// For 500-level errors, this returns a generic safe message.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "scan") ||
		strings.Contains(errStr, "transaction") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	default:
		return "An internal error occurred"
	}
}
