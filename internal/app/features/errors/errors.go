// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// body is the JSON shape of every error response.
type body struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// JSON writes an error response. code is a stable, machine-readable name.
func JSON(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body{Error: code, Message: msg})
}

// Unauthorized answers 401 with a bearer challenge.
func Unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="whosthat-admin"`)
	JSON(w, http.StatusUnauthorized, "unauthorized", msg)
}

func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusNotFound, "not_found", msg)
}

// ErrorLogger logs handler failures before answering 500.
type ErrorLogger struct {
	log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Internal logs err and answers 500 without leaking it.
func (e *ErrorLogger) Internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	e.log.Error(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	JSON(w, http.StatusInternalServerError, "internal", msg)
}
