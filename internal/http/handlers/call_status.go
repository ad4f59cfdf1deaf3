package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/bakame-ivr/internal/archive"
	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// SessionReader exposes the stored state of a call.
type SessionReader interface {
	Load(ctx context.Context, callSID string) *session.Session
	Interactions(ctx context.Context, callSID string) ([]session.Interaction, error)
}

// CallArchiver persists finished calls.
type CallArchiver interface {
	Archive(ctx context.Context, in archive.ArchiveInput)
}

// CallStatusHandler receives the carrier's status callback.
type CallStatusHandler struct {
	sessions SessionReader
	archiver CallArchiver
	logger   *logging.Logger
}

// NewCallStatusHandler accepts a nil archiver; finished calls are then only logged.
func NewCallStatusHandler(sessions SessionReader, archiver CallArchiver, logger *logging.Logger) *CallStatusHandler {
	if sessions == nil {
		panic("handlers: session reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CallStatusHandler{sessions: sessions, archiver: archiver, logger: logger}
}

// ServeHTTP handles POST /call-status.
func (h *CallStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	callSID := strings.TrimSpace(r.PostForm.Get("CallSid"))
	status := strings.TrimSpace(r.PostForm.Get("CallStatus"))
	duration, _ := strconv.Atoi(r.PostForm.Get("CallDuration"))

	logger := h.logger.WithCall(callSID)
	logger.Info("call status", "status", status, "duration_seconds", duration)

	if callSID == "" || status != "completed" || h.archiver == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	interactions, err := h.sessions.Interactions(ctx, callSID)
	if err != nil {
		logger.Warn("interaction log unavailable for archive", "error", err)
	}
	h.archiver.Archive(ctx, archive.ArchiveInput{
		CallSID:         callSID,
		From:            r.PostForm.Get("From"),
		Status:          status,
		DurationSeconds: duration,
		Session:         h.sessions.Load(ctx, callSID),
		Interactions:    interactions,
	})
	w.WriteHeader(http.StatusNoContent)
}
