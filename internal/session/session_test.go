package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string, string, any) (bool, error) {
	return false, fmt.Errorf("%w: dial tcp: connection refused", ErrStoreUnavailable)
}

func (failingStore) Set(context.Context, string, string, any, time.Duration) error {
	return fmt.Errorf("%w: dial tcp: connection refused", ErrStoreUnavailable)
}

func (failingStore) Append(context.Context, string, string, any, time.Duration) error {
	return fmt.Errorf("%w: dial tcp: connection refused", ErrStoreUnavailable)
}

func (failingStore) List(context.Context, string, string) ([][]byte, error) {
	return nil, fmt.Errorf("%w: dial tcp: connection refused", ErrStoreUnavailable)
}

type countingRecorder struct{ ops []string }

func (c *countingRecorder) ObserveStoreError(op string) { c.ops = append(c.ops, op) }

func newMemoryManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	store, err := NewMemoryStore(64)
	require.NoError(t, err)
	return NewManager(store, opts)
}

func TestManager_LoadDefaultsWhenAbsent(t *testing.T) {
	m := newMemoryManager(t, Options{})
	sess := m.Load(context.Background(), "CA-new")

	assert.Equal(t, "CA-new", sess.CallSID)
	assert.Equal(t, DefaultLanguage, sess.Language)
	assert.Empty(t, sess.CallerName)
	assert.Zero(t, sess.Sentiment)
	assert.NotNil(t, sess.History)
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	m := newMemoryManager(t, Options{})
	ctx := context.Background()

	sess := New("CA1")
	sess.CallerName = "Amina"
	sess.CallerID = "4821"
	sess.Language = "rw"
	sess.Sentiment = -0.4
	sess.AppendExchange("hello", "hi there", 0)
	m.Save(ctx, sess)

	loaded := m.Load(ctx, "CA1")
	assert.Equal(t, "Amina", loaded.CallerName)
	assert.Equal(t, "4821", loaded.CallerID)
	assert.Equal(t, "rw", loaded.Language)
	assert.InDelta(t, -0.4, loaded.Sentiment, 1e-9)
	assert.Len(t, loaded.History, 2)
}

func TestManager_DegradesWhenStoreUnreachable(t *testing.T) {
	rec := &countingRecorder{}
	m := NewManager(failingStore{}, Options{Errors: rec})
	ctx := context.Background()

	sess := m.Load(ctx, "CA1")
	require.NotNil(t, sess)
	assert.Equal(t, "CA1", sess.CallSID)
	assert.Equal(t, DefaultLanguage, sess.Language)
	assert.Empty(t, sess.CallerName)

	sess.CallerName = "Amina"
	m.Save(ctx, sess)
	m.Record(ctx, "CA1", "menu", nil)

	assert.Equal(t, []string{"load", "save", "record"}, rec.ops)

	_, err := m.Interactions(ctx, "CA1")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestManager_SessionExpiresAfterTTL(t *testing.T) {
	store, err := NewMemoryStore(64)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	m := NewManager(store, Options{TTL: 2 * time.Hour})
	ctx := context.Background()

	sess := New("CA1")
	sess.CallerName = "Amina"
	m.Save(ctx, sess)

	now = now.Add(119 * time.Minute)
	assert.Equal(t, "Amina", m.Load(ctx, "CA1").CallerName)

	now = now.Add(2 * time.Minute)
	assert.Empty(t, m.Load(ctx, "CA1").CallerName)
}

func TestManager_TranscriptIsShortLived(t *testing.T) {
	store, err := NewMemoryStore(64)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	m := NewManager(store, Options{TTL: 2 * time.Hour, TranscriptTTL: 5 * time.Minute})
	ctx := context.Background()

	m.SaveTranscript(ctx, "CA1", "hello there")
	assert.Equal(t, "hello there", m.Load(ctx, "CA1").LastTranscript)

	now = now.Add(6 * time.Minute)
	assert.Empty(t, m.Load(ctx, "CA1").LastTranscript)
}

func TestManager_SaveKeepsTranscriptWrittenDuringTurn(t *testing.T) {
	m := newMemoryManager(t, Options{})
	ctx := context.Background()

	sess := m.Load(ctx, "CA2")
	m.SaveTranscript(ctx, "CA2", "streamed words")
	sess.CallerName = "Amina"
	m.Save(ctx, sess)

	loaded := m.Load(ctx, "CA2")
	assert.Equal(t, "streamed words", loaded.LastTranscript)
	assert.Equal(t, "Amina", loaded.CallerName)
}

func TestManager_SaveWritesTranscriptChangedByTurn(t *testing.T) {
	m := newMemoryManager(t, Options{})
	ctx := context.Background()

	m.SaveTranscript(ctx, "CA3", "earlier words")
	sess := m.Load(ctx, "CA3")
	sess.LastTranscript = "I enjoy reading"
	sess.StreamStarted = true
	m.Save(ctx, sess)

	loaded := m.Load(ctx, "CA3")
	assert.Equal(t, "I enjoy reading", loaded.LastTranscript)
	assert.True(t, loaded.StreamStarted)
}

func TestManager_RecordAndReadInteractions(t *testing.T) {
	m := newMemoryManager(t, Options{})
	ctx := context.Background()

	m.Record(ctx, "CA1", "welcome", map[string]any{"prompt": "name"})
	m.Record(ctx, "CA1", "menu", map[string]any{"digits": "1"})

	entries, err := m.Interactions(ctx, "CA1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "welcome", entries[0].Action)
	assert.Equal(t, "1", entries[1].Payload["digits"])
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestAppendExchange_GrowsByPairs(t *testing.T) {
	sess := New("CA1")
	for i := 1; i <= 5; i++ {
		before := len(sess.History)
		sess.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), 0)
		assert.Equal(t, before+2, len(sess.History))
	}
	assert.Len(t, sess.History, 10)
	assert.Equal(t, RoleUser, sess.History[8].Role)
	assert.Equal(t, "q5", sess.History[8].Content)
	assert.Equal(t, RoleAssistant, sess.History[9].Role)
	assert.Equal(t, "a5", sess.History[9].Content)
}

func TestAppendExchange_BoundedDropsOldestPairs(t *testing.T) {
	sess := New("CA1")
	for i := 1; i <= 6; i++ {
		sess.AppendExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), 4)
	}
	require.Len(t, sess.History, 4)
	assert.Equal(t, "q5", sess.History[0].Content)
	assert.Equal(t, RoleUser, sess.History[0].Role)
	assert.Equal(t, "a6", sess.History[3].Content)
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	sess := New("CA1")
	sess.AppendExchange("q", "a", 0)
	snap := sess.HistorySnapshot()
	snap[0].Content = "mutated"
	assert.Equal(t, "q", sess.History[0].Content)
}
