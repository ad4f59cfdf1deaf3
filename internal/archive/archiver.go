package archive

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Call outcomes recorded in the archive.
const (
	OutcomeNoInteraction = "no_interaction"
	OutcomeAbandoned     = "abandoned_onboarding"
	OutcomeMenuOnly      = "menu_only"
	OutcomeEngaged       = "engaged"
)

// CallArchiver snapshots a finished call's session and interaction log.
// Failures are logged and swallowed so the status callback always succeeds.
type CallArchiver struct {
	store  *Store
	logger *logging.Logger
	now    func() time.Time
}

// NewCallArchiver returns nil when store is not enabled; a nil archiver is a no-op.
func NewCallArchiver(store *Store, logger *logging.Logger) *CallArchiver {
	if !store.Enabled() {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CallArchiver{store: store, logger: logger, now: time.Now}
}

type ArchiveInput struct {
	CallSID         string
	From            string
	Status          string
	DurationSeconds int
	Session         *session.Session
	Interactions    []session.Interaction
}

func (a *CallArchiver) Archive(ctx context.Context, in ArchiveInput) {
	if a == nil || in.CallSID == "" {
		return
	}
	record := buildRecord(in, a.now().UTC())
	scrubRecord(record)
	if err := a.store.ArchiveCall(ctx, record); err != nil {
		a.logger.Warn("call archive failed", "call_sid", in.CallSID, "error", err)
	}
}

func buildRecord(in ArchiveInput, now time.Time) *CallRecord {
	rec := &CallRecord{
		Version:         recordVersion,
		CallSID:         in.CallSID,
		PhoneHash:       HashPhone(in.From),
		ArchivedAt:      now,
		DurationSeconds: in.DurationSeconds,
		Status:          in.Status,
		Learner:         Learner{Language: session.DefaultLanguage},
	}
	if sess := in.Session; sess != nil {
		rec.Learner = Learner{
			Name:      sess.CallerName,
			ID:        sess.CallerID,
			Language:  sess.Language,
			Sentiment: sess.Sentiment,
		}
		for _, m := range sess.History {
			rec.Messages = append(rec.Messages, Message{Role: m.Role, Content: m.Content})
		}
	}
	rec.MessageCount = len(rec.Messages)
	for _, it := range in.Interactions {
		rec.Interactions = append(rec.Interactions, Interaction{Timestamp: it.Timestamp, Action: it.Action, Payload: it.Payload})
	}
	if n := len(rec.Interactions); n > 0 {
		rec.LastStep, _, _ = strings.Cut(rec.Interactions[n-1].Action, ".")
	}
	rec.Outcome = outcome(rec)
	return rec
}

func outcome(rec *CallRecord) string {
	if len(rec.Interactions) == 0 {
		return OutcomeNoInteraction
	}
	if rec.Learner.ID == "" {
		return OutcomeAbandoned
	}
	for _, it := range rec.Interactions {
		step, _, _ := strings.Cut(it.Action, ".")
		next, _ := it.Payload["next"].(string)
		if learningSteps[step] || learningSteps[next] {
			return OutcomeEngaged
		}
	}
	return OutcomeMenuOnly
}

var learningSteps = map[string]bool{
	"fact":              true,
	"speech-coaching":   true,
	"quiz":              true,
	"open-conversation": true,
}
