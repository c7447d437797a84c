// Package handler provides HTTP request handlers for the groceries API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// Notifier receives an event for every successful change to the grocery list.
type Notifier interface {
	Publish(event model.ChangeEvent)
}

type noopNotifier struct{}

func (noopNotifier) Publish(model.ChangeEvent) {}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message, details string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
		Details: details,
	}
	writeJSON(w, logger, status, response)
}
