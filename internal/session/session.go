package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultLanguage = "en"
)

// Attribute keys stored under a session namespace.
const (
	keyCallerName     = "caller_name"
	keyCallerID       = "caller_id"
	keyLanguage       = "language"
	keyHistory        = "history"
	keySentiment      = "sentiment"
	keyLastTranscript = "last_transcript"
	keyQuizQuestion   = "quiz_question"
	keyLastIntent     = "last_intent"
	keyStreamStarted  = "stream_started"
	keyInteractions   = "interactions"
)

// Message is one turn of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the transient state of one call.
type Session struct {
	CallSID        string    `json:"call_sid"`
	CallerName     string    `json:"caller_name,omitempty"`
	CallerID       string    `json:"caller_id,omitempty"`
	Language       string    `json:"language"`
	History        []Message `json:"history"`
	Sentiment      float64   `json:"sentiment"`
	LastTranscript string    `json:"last_transcript,omitempty"`
	QuizQuestion   string    `json:"quiz_question,omitempty"`
	LastIntent     string    `json:"last_intent,omitempty"`
	StreamStarted  bool      `json:"stream_started,omitempty"`

	// loadedTranscript is LastTranscript as read by Load. The live media
	// stream writes the transcript concurrently, so Save only writes it back
	// when the turn changed it.
	loadedTranscript string
}

// New returns the default session for a call: anonymous, English, neutral.
func New(callSID string) *Session {
	return &Session{
		CallSID:  callSID,
		Language: DefaultLanguage,
		History:  []Message{},
	}
}

// AppendExchange records a prompt and its reply, dropping the oldest pairs
// once limit messages are exceeded. A limit <= 0 keeps everything.
func (s *Session) AppendExchange(prompt, reply string, limit int) {
	s.History = append(s.History,
		Message{Role: RoleUser, Content: prompt},
		Message{Role: RoleAssistant, Content: reply},
	)
	if limit > 0 && len(s.History) > limit {
		drop := len(s.History) - limit
		if drop%2 != 0 {
			drop++
		}
		s.History = append([]Message(nil), s.History[drop:]...)
	}
}

// HistorySnapshot returns a copy safe to hand to a gateway call.
func (s *Session) HistorySnapshot() []Message {
	out := make([]Message, len(s.History))
	copy(out, s.History)
	return out
}

// Interaction is an append-only analytics record. It is never read back by
// the dialogue.
type Interaction struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ErrorRecorder counts store failures by operation.
type ErrorRecorder interface {
	ObserveStoreError(op string)
}

// Options configures a Manager.
type Options struct {
	TTL           time.Duration
	TranscriptTTL time.Duration
	HistoryLimit  int
	Logger        *logging.Logger
	Errors        ErrorRecorder
}

// Manager layers get-or-default semantics over a Store. It never returns a
// store error to the caller: an unreachable store degrades to defaults.
type Manager struct {
	store         Store
	ttl           time.Duration
	transcriptTTL time.Duration
	historyLimit  int
	logger        *logging.Logger
	errors        ErrorRecorder
	now           func() time.Time
}

// NewManager wires a Manager around store.
func NewManager(store Store, opts Options) *Manager {
	if store == nil {
		panic("session: store cannot be nil")
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if opts.TranscriptTTL <= 0 {
		opts.TranscriptTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Manager{
		store:         store,
		ttl:           opts.TTL,
		transcriptTTL: opts.TranscriptTTL,
		historyLimit:  opts.HistoryLimit,
		logger:        opts.Logger,
		errors:        opts.Errors,
		now:           time.Now,
	}
}

// HistoryLimit is the number of history messages retained per call.
func (m *Manager) HistoryLimit() int { return m.historyLimit }

// Load returns the call's session, or defaults when absent or unreadable.
func (m *Manager) Load(ctx context.Context, callSID string) *Session {
	sess := New(callSID)
	fields := []struct {
		key string
		dst any
	}{
		{keyCallerName, &sess.CallerName},
		{keyCallerID, &sess.CallerID},
		{keyLanguage, &sess.Language},
		{keyHistory, &sess.History},
		{keySentiment, &sess.Sentiment},
		{keyLastTranscript, &sess.LastTranscript},
		{keyQuizQuestion, &sess.QuizQuestion},
		{keyLastIntent, &sess.LastIntent},
		{keyStreamStarted, &sess.StreamStarted},
	}
	for _, f := range fields {
		if _, err := m.store.Get(ctx, callSID, f.key, f.dst); err != nil {
			m.observe("load", err, callSID)
			return New(callSID)
		}
	}
	if sess.Language == "" {
		sess.Language = DefaultLanguage
	}
	if sess.History == nil {
		sess.History = []Message{}
	}
	sess.loadedTranscript = sess.LastTranscript
	return sess
}

// Save writes every attribute, refreshing the TTL. The last transcript is
// written only when it differs from what Load saw. Failures are logged and
// swallowed so the call can continue.
func (m *Manager) Save(ctx context.Context, sess *Session) {
	if sess == nil || sess.CallSID == "" {
		return
	}
	writes := []struct {
		key   string
		value any
		ttl   time.Duration
	}{
		{keyCallerName, sess.CallerName, m.ttl},
		{keyCallerID, sess.CallerID, m.ttl},
		{keyLanguage, sess.Language, m.ttl},
		{keyHistory, sess.History, m.ttl},
		{keySentiment, sess.Sentiment, m.ttl},
		{keyQuizQuestion, sess.QuizQuestion, m.ttl},
		{keyLastIntent, sess.LastIntent, m.ttl},
		{keyStreamStarted, sess.StreamStarted, m.ttl},
	}
	if sess.LastTranscript != sess.loadedTranscript {
		writes = append(writes, struct {
			key   string
			value any
			ttl   time.Duration
		}{keyLastTranscript, sess.LastTranscript, m.transcriptTTL})
	}
	for _, w := range writes {
		if err := m.store.Set(ctx, sess.CallSID, w.key, w.value, w.ttl); err != nil {
			m.observe("save", err, sess.CallSID)
			return
		}
	}
	sess.loadedTranscript = sess.LastTranscript
}

// SaveTranscript persists only the short-lived last transcript.
func (m *Manager) SaveTranscript(ctx context.Context, callSID, transcript string) {
	if err := m.store.Set(ctx, callSID, keyLastTranscript, transcript, m.transcriptTTL); err != nil {
		m.observe("save_transcript", err, callSID)
	}
}

// Record appends an interaction log entry.
func (m *Manager) Record(ctx context.Context, callSID, action string, payload map[string]any) {
	entry := Interaction{
		Timestamp: m.now().UTC(),
		Action:    action,
		Payload:   payload,
	}
	if err := m.store.Append(ctx, callSID, keyInteractions, entry, m.ttl); err != nil {
		m.observe("record", err, callSID)
	}
}

// Interactions returns the call's interaction log for external analytics.
func (m *Manager) Interactions(ctx context.Context, callSID string) ([]Interaction, error) {
	raw, err := m.store.List(ctx, callSID, keyInteractions)
	if err != nil {
		m.observe("interactions", err, callSID)
		return nil, err
	}
	out := make([]Interaction, 0, len(raw))
	for _, r := range raw {
		var entry Interaction
		if err := json.Unmarshal(r, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *Manager) observe(op string, err error, callSID string) {
	m.logger.Warn("session store degraded", "op", op, "call_sid", callSID, "error", err)
	if m.errors != nil {
		m.errors.ObserveStoreError(op)
	}
}
