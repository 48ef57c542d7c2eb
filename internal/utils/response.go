// Package utils holds helpers shared by the server and the command line.
package utils

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/maruel/xbase/internal/errors"
)

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; log only.
		slog.Warn("http", "msg", "failed to encode response", "err", err)
	}
}

// RespondError sends an error JSON response.
func RespondError(w http.ResponseWriter, status int, message, code string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondAPIError writes err as a JSON error response. Errors implementing
// ErrorWithStatus choose the status and code; anything else is a 500.
func RespondAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := apierrors.ErrInternal
	message := err.Error()
	var details map[string]any
	var ews apierrors.ErrorWithStatus
	if errors.As(err, &ews) {
		status = ews.StatusCode()
		code = ews.Code()
		message = ews.Message()
		if d := ews.Details(); len(d) > 0 {
			details = d
		}
	}
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Handler error", "err", err, "statusCode", status, "code", code)
	} else {
		slog.InfoContext(r.Context(), "Handler error", "err", err, "statusCode", status, "code", code)
	}
	RespondJSON(w, status, ErrorResponse{Error: message, Code: string(code), Details: details})
}
