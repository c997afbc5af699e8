package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/common"
)

// Pinger checks that the quant backend is answering.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerHealthHandler reports whether the quant backend is reachable.
type ServerHealthHandler struct {
	logger *common.Logger
	pinger Pinger
}

// NewServerHealthHandler creates a new server health handler.
func NewServerHealthHandler(logger *common.Logger, pinger Pinger) *ServerHealthHandler {
	return &ServerHealthHandler{logger: logger, pinger: pinger}
}

// ServeHTTP handles GET /api/server-health.
func (h *ServerHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		if h.logger != nil {
			h.logger.Debug().Str("error", err.Error()).Msg("Quant backend health check failed")
		}
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
