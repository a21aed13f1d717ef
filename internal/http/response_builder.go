// Package http provides the JSON API server and its handlers.
//
// This file maps ledger errors onto HTTP status codes and writes JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dividi/internal/core"
	"dividi/internal/log"
	"dividi/internal/middleware/trace"
	"dividi/internal/services"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidAmount = "invalid_amount"
	CodeSplitMismatch = "split_mismatch"
	CodeNotFound      = "not_found"
	CodeValidation    = "validation"
	CodeConflict      = "conflict"
	CodeBadRequest    = "bad_request"
	CodeRateLimited   = "rate_limited"
	CodeInternal      = "internal"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

var validationErrors = []error{
	core.ErrEmptyTitle,
	core.ErrEmptyPayer,
	core.ErrEmptyName,
	core.ErrNoParticipants,
	core.ErrUnknownStrategy,
	core.ErrSelfTransfer,
	services.ErrInvalidRequest,
}

// classify maps err to a status code and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, CodeInvalidAmount
	case errors.Is(err, core.ErrSplitMismatch):
		return http.StatusUnprocessableEntity, CodeSplitMismatch
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, services.ErrUnsettledBalances):
		return http.StatusConflict, CodeConflict
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, CodeValidation
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError logs and writes err. Internal errors never leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)
	msg := err.Error()

	if status >= 500 {
		logger.LogError(ctx, "Request failed", err, r.Method+" "+r.URL.Path, nil)
		msg = "internal error"
	} else {
		logger.DebugContext(ctx, "Request rejected",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			"code", code,
			log.FieldError, err)
	}

	writeJSON(w, status, ErrorBody{Error: msg, Code: code, RequestID: trace.GetRequestID(ctx)})
}

// writeRateLimited is the rate limiter's rejection response.
func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, ErrorBody{
		Error:     "rate limit exceeded, please try again later",
		Code:      CodeRateLimited,
		RequestID: trace.GetRequestID(r.Context()),
	})
}
