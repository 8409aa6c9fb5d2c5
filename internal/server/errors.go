package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/voxgate/voxgate/internal/model"
	"github.com/voxgate/voxgate/pkg/oai"
)

// Error type strings carried in the `error.type` field of JSON error bodies.
const (
	errModelNotFound   = "model_not_found"
	errModelNotRunning = "model_not_running"
	errValidation      = "validation_error"
	errRequestTimeout  = "request_timeout"
	errConnection      = "connection_error"
	errInternal        = "internal_server_error"
)

// writeError sends a JSON error body {"error":{"message","type"}}.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(oai.ErrorResponse{
		Error: oai.ErrorDetail{Message: msg, Type: typ},
	}); err != nil {
		slog.Debug("failed to write error body", "err", err)
	}
}

// writeResolveError maps registry resolution failures to their HTTP status.
func writeResolveError(w http.ResponseWriter, err error) {
	var (
		notFound    *model.NotFoundError
		notRunning  *model.NotRunningError
		combination *model.CombinationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, errModelNotFound, err.Error())
	case errors.As(err, &notRunning):
		writeError(w, http.StatusBadRequest, errModelNotRunning, err.Error())
	case errors.As(err, &combination):
		writeError(w, http.StatusUnprocessableEntity, errValidation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, errInternal, err.Error())
	}
}

// writeUpstreamError maps a failure to reach or start an upstream stream.
// Only used before the response stream has started; mid-stream failures are
// logged and terminate the stream silently.
func writeUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusRequestTimeout, errRequestTimeout, err.Error())
		return
	}
	writeError(w, http.StatusServiceUnavailable, errConnection, err.Error())
}
