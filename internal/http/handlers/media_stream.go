package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/bakame-ivr/internal/transcription"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// StreamDialer opens a live transcription session for one call.
type StreamDialer func(ctx context.Context) (transcription.StreamConn, error)

// TranscriptSink stores what the live transcription hears.
type TranscriptSink interface {
	SaveTranscript(ctx context.Context, callSID, transcript string)
	Record(ctx context.Context, callSID, action string, payload map[string]any)
}

// mediaEvent is the carrier's media-stream envelope. Only the fields the
// relay needs are decoded.
type mediaEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Start     struct {
		CallSid   string `json:"callSid"`
		StreamSid string `json:"streamSid"`
	} `json:"start"`
	Media struct {
		Track   string `json:"track"`
		Payload string `json:"payload"`
	} `json:"media"`
}

const (
	defaultFrameBuffer = 64
	// flushTimeout bounds how long a finished stream waits for final fragments.
	flushTimeout = 5 * time.Second
)

// MediaStreamHandler accepts the carrier's media websocket and relays the
// caller's audio to live transcription.
type MediaStreamHandler struct {
	dial        StreamDialer
	sink        TranscriptSink
	logger      *logging.Logger
	upgrader    websocket.Upgrader
	frameBuffer int
}

func NewMediaStreamHandler(dial StreamDialer, sink TranscriptSink, logger *logging.Logger) *MediaStreamHandler {
	if dial == nil {
		panic("handlers: stream dialer cannot be nil")
	}
	if sink == nil {
		panic("handlers: transcript sink cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MediaStreamHandler{
		dial:   dial,
		sink:   sink,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// The carrier connects server to server; there is no browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		frameBuffer: defaultFrameBuffer,
	}
}

// ServeHTTP handles GET /media-stream.
func (h *MediaStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("media stream upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	// The websocket outlives the request context once hijacked.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	s := &mediaSession{handler: h, cancel: cancel}
	defer s.finish()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("media stream read ended", "call_sid", s.callSID, "error", err)
			}
			return
		}
		var ev mediaEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			h.logger.Debug("media stream event ignored", "error", err)
			continue
		}
		switch ev.Event {
		case "start":
			if err := s.start(ctx, ev); err != nil {
				h.logger.Error("live transcription unavailable", "call_sid", ev.Start.CallSid, "error", err)
				return
			}
		case "media":
			if ev.Media.Track != "" && ev.Media.Track != "inbound" {
				continue
			}
			frame, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil || len(frame) == 0 {
				continue
			}
			if !s.push(ctx, frame) {
				return
			}
		case "stop":
			return
		}
	}
}

// mediaSession is the per-websocket relay state.
type mediaSession struct {
	handler *MediaStreamHandler
	callSID string
	frames  chan []byte
	done    chan error
	cancel  context.CancelFunc

	mu    sync.Mutex
	heard []string
}

func (s *mediaSession) start(ctx context.Context, ev mediaEvent) error {
	if s.frames != nil {
		return nil
	}
	s.callSID = strings.TrimSpace(ev.Start.CallSid)
	if s.callSID == "" {
		return errors.New("start event without call sid")
	}
	conn, err := s.handler.dial(ctx)
	if err != nil {
		return err
	}
	s.frames = make(chan []byte, s.handler.frameBuffer)
	s.done = make(chan error, 1)
	relay := transcription.NewRelay(conn, s.handler.logger.WithCall(s.callSID))
	go func() {
		s.done <- relay.Run(ctx, s.frames, s.persist)
	}()
	s.handler.logger.Info("media stream started", "call_sid", s.callSID, "stream_sid", firstNonEmpty(ev.Start.StreamSid, ev.StreamSid))
	return nil
}

func (s *mediaSession) push(ctx context.Context, frame []byte) bool {
	if s.frames == nil {
		return true
	}
	select {
	case s.frames <- frame:
		return true
	case err := <-s.done:
		// Relay ended early; put the result back for finish.
		s.done <- err
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *mediaSession) persist(ctx context.Context, f transcription.Fragment) error {
	s.mu.Lock()
	s.heard = append(s.heard, f.Text)
	transcript := strings.Join(s.heard, " ")
	s.mu.Unlock()

	s.handler.sink.SaveTranscript(ctx, s.callSID, transcript)
	s.handler.sink.Record(ctx, s.callSID, "media-stream.transcript", map[string]any{"text": f.Text})
	return nil
}

func (s *mediaSession) finish() {
	if s.frames == nil {
		return
	}
	close(s.frames)
	var err error
	select {
	case err = <-s.done:
	case <-time.After(flushTimeout):
		s.cancel()
		err = <-s.done
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.handler.logger.Warn("live transcription ended with error", "call_sid", s.callSID, "error", err)
	}
	s.handler.logger.Info("media stream finished", "call_sid", s.callSID, "fragments", len(s.heard))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
