package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store     Pinger
	timeout   time.Duration
	responder responder
}

// NewHealthHandler builds probes that ping store for readiness.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second, responder: newResponder(logger)}
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Live always reports ok while the process serves requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

// Ready reports 503 when the store cannot be reached.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.responder.loggerFor(r.Context()).WarnContext(r.Context(), "readiness check failed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: "store unreachable"})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}
