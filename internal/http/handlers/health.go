package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type connectionChecker interface {
	ConnectionState(ctx context.Context) (string, error)
}

// HealthHandler reports process liveness and the WhatsApp link state.
type HealthHandler struct {
	whatsapp connectionChecker
	logger   *logging.Logger
}

func NewHealthHandler(whatsapp connectionChecker, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{whatsapp: whatsapp, logger: logger}
}

// Check responds 200 as long as the process is serving. The WhatsApp
// state is informational: a disconnected instance is reported, not
// treated as process failure.
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.whatsapp != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		state, err := h.whatsapp.ConnectionState(ctx)
		if err != nil {
			h.logger.Warn("health: whatsapp state unavailable", "error", err)
			state = "unreachable"
		}
		resp["whatsapp"] = state
	}
	writeJSON(w, resp)
}
