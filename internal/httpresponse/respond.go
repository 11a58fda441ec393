// Package httpresponse holds the JSON response helpers shared by every
// HTTP controller package (httpapi, customers, synccontrollers),
// generalized from the teacher's writeJSON/writeError pair in
// internal/api/server.go into the typed error-to-status mapping
// spec.md §7 requires.
package httpresponse

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteRawJSON writes a pre-encoded JSON document, used for results
// produced by DBConnection.ExecuteJSON that are already serialized.
func WriteRawJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// failureBody is spec.md §7's "user-visible failure body".
type failureBody struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Code            int    `json:"code"`
	ExceptionType   string `json:"exception_type,omitempty"`
	OriginalMessage string `json:"original_message,omitempty"`
}

// WriteFailure writes the mutation-response failure shape directly,
// for handlers that already know the status and message (e.g. 404 on
// a soft-deleted row) rather than starting from a gwerrors.Error.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, failureBody{Success: false, Message: message, Code: status})
}

// HandleError inspects err's gwerrors.Kind and writes the matching
// status and failure body. Non-gwerrors errors are treated as
// CommandError. In development builds (config.IsProductionMode()
// false) the body additionally carries exception_type and
// original_message, per spec.md §7.
func HandleError(w http.ResponseWriter, err error) {
	gerr, ok := gwerrors.As(err)
	if !ok {
		gerr, _ = gwerrors.As(gwerrors.CommandError(err, "unexpected error"))
	}

	status := gerr.Kind.StatusFor(gerr.Transient)
	slog.Error("request failed", "kind", gerr.Kind.String(), "status", status, "err", gerr)

	body := failureBody{Success: false, Message: gerr.Message, Code: status}
	if !config.IsProductionMode() {
		body.ExceptionType = gerr.Kind.String()
		if gerr.Cause != nil {
			body.OriginalMessage = gerr.Cause.Error()
		}
	}
	WriteJSON(w, status, body)
}
