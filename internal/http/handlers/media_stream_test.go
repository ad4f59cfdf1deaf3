package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bakame-ivr/internal/transcription"
)

// echoConn turns every audio frame into a final fragment of the same text.
type echoConn struct {
	mu     sync.Mutex
	frames [][]byte
	out    chan transcription.Fragment
	once   sync.Once
}

func newEchoConn() *echoConn { return &echoConn{out: make(chan transcription.Fragment, 16)} }

func (c *echoConn) Send(_ context.Context, frame []byte) error {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	c.out <- transcription.Fragment{Text: string(frame), Final: true}
	return nil
}

func (c *echoConn) CloseSend(context.Context) error {
	c.once.Do(func() { close(c.out) })
	return nil
}

func (c *echoConn) Recv(ctx context.Context) (transcription.Fragment, error) {
	select {
	case f, ok := <-c.out:
		if !ok {
			return transcription.Fragment{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return transcription.Fragment{}, ctx.Err()
	}
}

func (c *echoConn) Close() error { return nil }

type memorySink struct {
	mu          sync.Mutex
	transcripts map[string]string
	actions     []string
}

func (s *memorySink) SaveTranscript(_ context.Context, callSID, transcript string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcripts == nil {
		s.transcripts = map[string]string{}
	}
	s.transcripts[callSID] = transcript
}

func (s *memorySink) Record(_ context.Context, _ string, action string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

func (s *memorySink) snapshot() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcripts["CA-live"], len(s.actions)
}

func TestMediaStream_RelaysInboundAudio(t *testing.T) {
	conn := newEchoConn()
	sink := &memorySink{}
	h := NewMediaStreamHandler(func(context.Context) (transcription.StreamConn, error) {
		return conn, nil
	}, sink, quietLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	send := func(v any) { require.NoError(t, ws.WriteJSON(v)) }
	media := func(track, text string) map[string]any {
		return map[string]any{"event": "media", "media": map[string]any{
			"track":   track,
			"payload": base64.StdEncoding.EncodeToString([]byte(text)),
		}}
	}
	send(map[string]any{"event": "connected"})
	send(map[string]any{"event": "start", "streamSid": "MZ1", "start": map[string]any{"callSid": "CA-live", "streamSid": "MZ1"}})
	send(media("inbound", "hello"))
	send(media("outbound", "robot voice"))
	send(media("inbound", "world"))
	send(map[string]any{"event": "stop"})

	require.Eventually(t, func() bool {
		transcript, n := sink.snapshot()
		return transcript == "hello world" && n == 2
	}, 2*time.Second, 10*time.Millisecond)
	_ = ws.Close()
}

func TestMediaStream_DialFailureClosesSocket(t *testing.T) {
	h := NewMediaStreamHandler(func(context.Context) (transcription.StreamConn, error) {
		return nil, io.ErrUnexpectedEOF
	}, &memorySink{}, quietLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "start", "start": map[string]any{"callSid": "CA1"}}))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
}
