// httputil/json.go
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON error envelope every endpoint returns,
// e.g. {"error":"Invalid signature"}.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var jsonLogger atomic.Pointer[zap.Logger]

// SetJSONLogger configures the logger used for JSON encoding errors.
// Call once during startup.
func SetJSONLogger(logger *zap.Logger) {
	jsonLogger.Store(logger)
}

// WriteJSON writes v as JSON with the given status code. Status codes outside
// 100-599 are clamped to 500. Encoding errors can only be logged because the
// header is already sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		if l := jsonLogger.Load(); l != nil {
			l.Error("json encoding failed after headers sent",
				zap.String("type", fmt.Sprintf("%T", v)),
				zap.Error(err))
		}
	}
}

// JSONError writes {"error": code, "message": message}.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// JSONErrorSimple writes {"error": message}.
func JSONErrorSimple(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}
