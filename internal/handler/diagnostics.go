package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// BigStringPath serves a fixed-size payload for memory and throughput checks.
const BigStringPath = "/api/bigstring"

// bigStringSize is the payload length in bytes.
const bigStringSize = 10 * 1024

// DiagnosticsHandler serves endpoints used to probe the running process.
type DiagnosticsHandler struct {
	payload []byte
	logger  *zap.Logger
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler instance.
func NewDiagnosticsHandler(logger *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		payload: []byte(strings.Repeat("x", bigStringSize)),
		logger:  logger,
	}
}

// RegisterRoutes registers the diagnostics routes with the router.
func (h *DiagnosticsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(BigStringPath, h.BigString).Methods(http.MethodGet)
}

// BigString handles GET /api/bigstring requests.
func (h *DiagnosticsHandler) BigString(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(h.payload); err != nil {
		h.logger.Debug("failed to write payload", zap.Error(err))
	}
}
