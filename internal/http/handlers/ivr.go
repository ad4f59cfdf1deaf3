package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/bakame-ivr/internal/dialogue"
	"github.com/wolfman30/bakame-ivr/internal/voice"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// fallbackTwiML is served when a response cannot be rendered at all.
const fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<Response><Say>Sorry, something went wrong. Please call again later.</Say><Hangup></Hangup></Response>`

// TurnRunner executes one carrier callback against the call's session.
type TurnRunner interface {
	Run(ctx context.Context, callSID string, turn dialogue.Turn) dialogue.Result
}

// Route binds a callback path to its handler.
type Route struct {
	Path    string
	Step    dialogue.Step
	Phase   dialogue.Phase
	Handler http.HandlerFunc
}

// IVRHandler serves the carrier's voice callbacks.
type IVRHandler struct {
	runner   TurnRunner
	renderer *voice.Renderer
	logger   *logging.Logger
}

// IVRHandlerConfig configures the IVRHandler.
type IVRHandlerConfig struct {
	Runner   TurnRunner
	Renderer *voice.Renderer
	Logger   *logging.Logger
}

func NewIVRHandler(cfg IVRHandlerConfig) *IVRHandler {
	if cfg.Runner == nil {
		panic("handlers: turn runner cannot be nil")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = voice.NewRenderer("", "")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &IVRHandler{runner: cfg.Runner, renderer: cfg.Renderer, logger: cfg.Logger}
}

// Routes returns one route per prompt and reply path in the call-flow table.
func (h *IVRHandler) Routes() []Route {
	var routes []Route
	for _, t := range dialogue.Transitions() {
		if t.PromptPath != "" {
			routes = append(routes, Route{Path: t.PromptPath, Step: t.Step, Phase: dialogue.PhasePrompt, Handler: h.Handle(t.Step, dialogue.PhasePrompt)})
		}
		if t.ReplyPath != "" {
			routes = append(routes, Route{Path: t.ReplyPath, Step: t.Step, Phase: dialogue.PhaseReply, Handler: h.Handle(t.Step, dialogue.PhaseReply)})
		}
	}
	return routes
}

// Handle builds the callback handler for one step and phase.
func (h *IVRHandler) Handle(step dialogue.Step, phase dialogue.Phase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			h.logger.Warn("unparseable callback form", "path", r.URL.Path, "error", err)
		}
		callSID := strings.TrimSpace(r.PostForm.Get("CallSid"))
		turn := dialogue.Turn{
			Step:  step,
			Phase: phase,
			Input: dialogue.ParseInput(
				r.PostForm.Get("Digits"),
				r.PostForm.Get("SpeechResult"),
				r.PostForm.Get("RecordingUrl"),
			),
		}
		res := h.runner.Run(r.Context(), callSID, turn)
		h.writeTwiML(w, callSID, res.Instructions)
	}
}

// Unavailable answers a carrier callback with the spoken apology. The carrier
// only plays markup from a 2xx response.
func Unavailable(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fallbackTwiML))
}

func (h *IVRHandler) writeTwiML(w http.ResponseWriter, callSID string, instructions []voice.Instruction) {
	body, err := h.renderer.Render(instructions)
	if err != nil {
		h.logger.Error("twiml render failed", "call_sid", callSID, "error", err)
		body = []byte(fallbackTwiML)
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
