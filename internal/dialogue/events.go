package dialogue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// CallEvent is a structured call-flow event. All events share the same base
// fields so they can be filtered with grep:
//
//	grep '"event":"invalid_choice"' /var/log/ivr.log
//	grep '"call_sid":"CA123"' /var/log/ivr.log
type CallEvent struct {
	Time    string         `json:"time"`
	Event   string         `json:"event"`
	CallSID string         `json:"call_sid"`
	Data    map[string]any `json:"data,omitempty"`
}

type EventLogger struct {
	logger *logging.Logger
}

func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

func (e *EventLogger) Log(_ context.Context, event, callSID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	b, _ := json.Marshal(CallEvent{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Event:   event,
		CallSID: callSID,
		Data:    data,
	})
	e.logger.Info(string(b))
}

func (e *EventLogger) StepHandled(ctx context.Context, callSID string, turn Turn, res Result) {
	e.Log(ctx, "step_handled", callSID, map[string]any{
		"step":    turn.Step,
		"phase":   turn.Phase,
		"input":   turn.Input.Kind,
		"next":    res.Next,
		"outcome": res.Outcome,
	})
}

func (e *EventLogger) InvalidChoice(ctx context.Context, callSID, digits string) {
	e.Log(ctx, "invalid_choice", callSID, map[string]any{"digits": digits})
}

func (e *EventLogger) Reprompt(ctx context.Context, callSID string, from, to Step) {
	e.Log(ctx, "reprompt", callSID, map[string]any{"from": from, "to": to})
}

func (e *EventLogger) UpstreamDegraded(ctx context.Context, callSID, service string, step Step) {
	data := map[string]any{"service": service}
	if step != "" {
		data["step"] = step
	}
	e.Log(ctx, "upstream_degraded", callSID, data)
}
