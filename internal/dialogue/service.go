package dialogue

import (
	"context"

	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Sessions is the slice of the session manager a turn needs.
type Sessions interface {
	Load(ctx context.Context, callSID string) *session.Session
	Save(ctx context.Context, sess *session.Session)
	Record(ctx context.Context, callSID, action string, payload map[string]any)
}

// StepObserver counts handled turns.
type StepObserver interface {
	ObserveStep(step, outcome string)
}

// Service wraps a Machine with session load/save and the interaction log.
type Service struct {
	machine  *Machine
	sessions Sessions
	metrics  StepObserver
	logger   *logging.Logger
}

func NewService(machine *Machine, sessions Sessions, metrics StepObserver, logger *logging.Logger) *Service {
	if machine == nil {
		panic("dialogue: machine cannot be nil")
	}
	if sessions == nil {
		panic("dialogue: sessions cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{machine: machine, sessions: sessions, metrics: metrics, logger: logger}
}

// Run handles one carrier callback for callSID. Without a call id the turn
// runs on a throwaway session that is never stored.
func (s *Service) Run(ctx context.Context, callSID string, turn Turn) Result {
	var res Result
	if callSID == "" {
		s.logger.Warn("callback without call id", "step", turn.Step)
		res = s.machine.Handle(ctx, session.New(""), turn)
	} else {
		sess := s.sessions.Load(ctx, callSID)
		res = s.machine.Handle(ctx, sess, turn)
		s.sessions.Save(ctx, sess)
		s.sessions.Record(ctx, callSID, string(turn.Step)+"."+string(turn.Phase), interactionPayload(turn, res))
	}
	if s.metrics != nil {
		s.metrics.ObserveStep(string(turn.Step), res.Outcome)
	}
	return res
}

func interactionPayload(turn Turn, res Result) map[string]any {
	payload := map[string]any{
		"input":   string(turn.Input.Kind),
		"next":    string(res.Next),
		"outcome": res.Outcome,
	}
	switch turn.Input.Kind {
	case InputDigits:
		payload["digits"] = turn.Input.Digits
	case InputSpeech:
		payload["speech"] = turn.Input.Speech
	case InputRecording:
		payload["recording_url"] = turn.Input.RecordingURL
	}
	return payload
}
