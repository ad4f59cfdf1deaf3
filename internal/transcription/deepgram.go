// Package transcription turns caller audio into text through Deepgram, either
// from a finished recording URL or from a live media stream.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Unavailable stands in for the transcript when transcription fails.
const Unavailable = "transcription unavailable"

const (
	defaultBaseURL  = "https://api.deepgram.com/v1"
	defaultModel    = "nova-2"
	upstreamService = "transcription"
)

// ErrNoResults is returned when Deepgram answers without a usable transcript.
var ErrNoResults = errors.New("transcription: response had no results")

// UpstreamObserver receives one observation per hosted-service call.
type UpstreamObserver interface {
	ObserveUpstream(service, status string, seconds float64)
}

// Transcript is the outcome of one batch transcription.
type Transcript struct {
	Text       string
	Confidence float64
	// Available is false when Text is the Unavailable sentinel.
	Available bool
}

type DeepgramOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    UpstreamObserver
	Tracer     trace.Tracer
}

// DeepgramClient transcribes recordings by URL with the pre-recorded API.
type DeepgramClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    UpstreamObserver
	tracer     trace.Tracer
}

func NewDeepgramClient(apiKey string, opts DeepgramOptions) *DeepgramClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("bakame.internal.transcription")
	}
	return &DeepgramClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
	}
}

type listenResponse struct {
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe never fails: any upstream problem yields the Unavailable sentinel.
func (c *DeepgramClient) Transcribe(ctx context.Context, audioURL string) Transcript {
	ctx, span := c.tracer.Start(ctx, "transcription.batch")
	defer span.End()

	start := time.Now()
	text, confidence, err := c.fetch(ctx, audioURL)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
	}
	if c.metrics != nil {
		c.metrics.ObserveUpstream(upstreamService, status, time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Warn("transcription degraded", "error", err)
		return Transcript{Text: Unavailable}
	}
	return Transcript{Text: text, Confidence: confidence, Available: true}
}

func (c *DeepgramClient) fetch(ctx context.Context, audioURL string) (string, float64, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", 0, errors.New("transcription: audio url is required")
	}
	var resp listenResponse
	err := requests.
		URL(c.baseURL+"/listen").
		Client(c.httpClient).
		Param("model", c.model).
		Param("smart_format", "true").
		Header("Authorization", "Token "+c.apiKey).
		BodyJSON(map[string]string{"url": audioURL}).
		Post().
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("transcription: deepgram listen: %w", err)
	}
	if resp.Results == nil || len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", 0, ErrNoResults
	}
	alt := resp.Results.Channels[0].Alternatives[0]
	return strings.TrimSpace(alt.Transcript), alt.Confidence, nil
}
