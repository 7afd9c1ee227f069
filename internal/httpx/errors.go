package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/storefront-fulfillment/internal/domain"
	"github.com/jcmexdev/storefront-fulfillment/internal/httpx/middlewares"
)

// statusFor is the single mapping from the domain error taxonomy to HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Message: msg,
	})
}

// fail logs err and answers with its mapped status. Internal errors are not
// echoed to the client.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	requestID := middlewares.RequestID(r.Context())
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op+" failed", "request_id", requestID, "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	slog.InfoContext(r.Context(), op+" rejected", "request_id", requestID, "status", status, "error", err)
	writeError(w, status, err.Error())
}
