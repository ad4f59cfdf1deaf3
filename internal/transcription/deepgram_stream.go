package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultStreamURL = "wss://api.deepgram.com/v1/listen"

// StreamOptions describe the audio carried by a media stream. The carrier
// sends 8 kHz mono mu-law.
type StreamOptions struct {
	URL        string
	Model      string
	Encoding   string
	SampleRate int
	Channels   int
	Dialer     *websocket.Dialer
}

// DeepgramStream is a StreamConn over Deepgram's live websocket API.
type DeepgramStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialDeepgram opens a live transcription socket.
func DialDeepgram(ctx context.Context, apiKey string, opts StreamOptions) (*DeepgramStream, error) {
	if opts.URL == "" {
		opts.URL = defaultStreamURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Encoding == "" {
		opts.Encoding = "mulaw"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 8000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("transcription: parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("encoding", opts.Encoding)
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("channels", strconv.Itoa(opts.Channels))
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+apiKey)
	conn, resp, err := opts.Dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("transcription: dial deepgram: %w", err)
	}
	return &DeepgramStream{conn: conn}, nil
}

func (s *DeepgramStream) Send(ctx context.Context, frame []byte) error {
	return s.write(ctx, websocket.BinaryMessage, frame)
}

func (s *DeepgramStream) CloseSend(ctx context.Context) error {
	return s.write(ctx, websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *DeepgramStream) write(ctx context.Context, messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("transcription: stream write: %w", err)
	}
	return nil
}

type liveMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Recv returns the next Results message. Metadata and other control
// messages are skipped. A normal close from the service is io.EOF.
func (s *DeepgramStream) Recv(ctx context.Context) (Fragment, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Fragment{}, io.EOF
			}
			return Fragment{}, fmt.Errorf("transcription: stream read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		return Fragment{
			Text:  strings.TrimSpace(msg.Channel.Alternatives[0].Transcript),
			Final: msg.IsFinal,
		}, nil
	}
}

func (s *DeepgramStream) Close() error {
	return s.conn.Close()
}
