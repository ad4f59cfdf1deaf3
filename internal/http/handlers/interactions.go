package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// InteractionsHandler serves the per-call interaction log for analytics.
type InteractionsHandler struct {
	sessions SessionReader
	logger   *logging.Logger
}

func NewInteractionsHandler(sessions SessionReader, logger *logging.Logger) *InteractionsHandler {
	if sessions == nil {
		panic("handlers: session reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &InteractionsHandler{sessions: sessions, logger: logger}
}

type interactionsResponse struct {
	CallSID      string                `json:"call_sid"`
	Count        int                   `json:"count"`
	Interactions []session.Interaction `json:"interactions"`
}

// ServeHTTP handles GET /sessions/{callSID}/interactions.
func (h *InteractionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callSID := strings.TrimSpace(chi.URLParam(r, "callSID"))
	if callSID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "call sid required"})
		return
	}
	entries, err := h.sessions.Interactions(r.Context(), callSID)
	if err != nil {
		h.logger.Warn("interaction log read failed", "call_sid", callSID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
		return
	}
	if entries == nil {
		entries = []session.Interaction{}
	}
	writeJSON(w, http.StatusOK, interactionsResponse{CallSID: callSID, Count: len(entries), Interactions: entries})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
