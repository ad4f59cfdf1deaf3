package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Apology is spoken in place of a reply whenever the AI service fails.
const Apology = "I'm sorry, I'm having trouble thinking right now. Let's try again."

const (
	defaultModel          = "deepseek-chat"
	defaultTemperature    = 0.5
	// classifyTemperature keeps detection, translation and analysis near
	// deterministic. Zero is dropped from the wire and means provider default.
	classifyTemperature   = 0.01
	defaultTimeout        = 20 * time.Second
	defaultTranslations   = 512
	defaultTranslationTTL = 24 * time.Hour
	upstreamService       = "ai"
)

const tutorSystemPrompt = `You are Bakame, a friendly English tutor talking with a caller over the phone.
Your words are read aloud by a text-to-speech voice, so answer in at most three short sentences.
Never use lists, markdown, emojis or URLs.`

// UpstreamObserver receives one observation per hosted-service call.
type UpstreamObserver interface {
	ObserveUpstream(service, status string, seconds float64)
}

type Options struct {
	Model       string
	Temperature float32
	// Timeout bounds every individual completion.
	Timeout              time.Duration
	TranslationCacheSize int
	TranslationTTL       time.Duration
	Logger               *logging.Logger
	Metrics              UpstreamObserver
	Tracer               trace.Tracer
}

// Gateway turns prompts into spoken replies. It never returns an error:
// upstream failures become Apology with Degraded set.
type Gateway struct {
	client       LLMClient
	model        string
	temperature  float32
	timeout      time.Duration
	logger       *logging.Logger
	metrics      UpstreamObserver
	tracer       trace.Tracer
	translations *expirable.LRU[string, string]
}

func NewGateway(client LLMClient, opts Options) *Gateway {
	if client == nil {
		panic("ai: llm client cannot be nil")
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.TranslationCacheSize <= 0 {
		opts.TranslationCacheSize = defaultTranslations
	}
	if opts.TranslationTTL <= 0 {
		opts.TranslationTTL = defaultTranslationTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("bakame.internal.ai")
	}
	return &Gateway{
		client:       client,
		model:        opts.Model,
		temperature:  opts.Temperature,
		timeout:      opts.Timeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		translations: expirable.NewLRU[string, string](opts.TranslationCacheSize, nil, opts.TranslationTTL),
	}
}

// Prompt is one request on behalf of the caller.
type Prompt struct {
	Text     string
	History  []ChatMessage
	Language string
	// Instructions are appended to the tutor system prompt for this turn only.
	Instructions []string
}

type Reply struct {
	Text     string
	Degraded bool
}

// Generate sends the prompt with the prior exchange history.
func (g *Gateway) Generate(ctx context.Context, p Prompt) Reply {
	system := []string{tutorSystemPrompt}
	if lang := normalizeLanguage(p.Language); lang != "" && lang != "en" {
		system = append(system, fmt.Sprintf("Reply in the language with ISO 639-1 code %q.", lang))
	}
	system = append(system, p.Instructions...)

	messages := make([]ChatMessage, 0, len(p.History)+1)
	messages = append(messages, p.History...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: p.Text})

	resp, err := g.complete(ctx, "generate", LLMRequest{
		Model:       g.model,
		System:      system,
		Messages:    messages,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.Warn("ai generate degraded", "error", err)
		return Reply{Text: Apology, Degraded: true}
	}
	return Reply{Text: resp.Text}
}

// DetectLanguage returns the ISO 639-1 code of text, or "en" when unsure.
func (g *Gateway) DetectLanguage(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return "en"
	}
	resp, err := g.complete(ctx, "detect_language", LLMRequest{
		Model:       g.model,
		System:      []string{"Identify the language of the user's text. Reply with its two-letter ISO 639-1 code only."},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: text}},
		Temperature: classifyTemperature,
	})
	if err != nil {
		g.logger.Warn("ai language detection degraded", "error", err)
		return "en"
	}
	if lang := normalizeLanguage(resp.Text); lang != "" {
		return lang
	}
	return "en"
}

// Translate renders text in lang. English or a failed translation returns
// text unchanged.
func (g *Gateway) Translate(ctx context.Context, text, lang string) string {
	lang = normalizeLanguage(lang)
	if lang == "" || lang == "en" || strings.TrimSpace(text) == "" {
		return text
	}
	key := lang + "\x00" + text
	if cached, ok := g.translations.Get(key); ok {
		return cached
	}
	resp, err := g.complete(ctx, "translate", LLMRequest{
		Model:       g.model,
		System:      []string{fmt.Sprintf("Translate the user's text into the language with ISO 639-1 code %q. Reply with the translation only.", lang)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: text}},
		Temperature: classifyTemperature,
	})
	if err != nil {
		g.logger.Warn("ai translation degraded", "error", err, "language", lang)
		return text
	}
	g.translations.Add(key, resp.Text)
	return resp.Text
}

func (g *Gateway) complete(ctx context.Context, op string, req LLMRequest) (LLMResponse, error) {
	ctx, span := g.tracer.Start(ctx, "ai."+op, trace.WithAttributes(
		attribute.String("ivr.ai_model", req.Model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
	}
	if g.metrics != nil {
		g.metrics.ObserveUpstream(upstreamService, status, time.Since(start).Seconds())
	}
	if err != nil {
		return LLMResponse{}, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return LLMResponse{}, ErrEmptyCompletion
	}
	return resp, nil
}

func normalizeLanguage(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, " \t\r\n.\"'`")
	if i := strings.IndexAny(s, "-_ "); i > 0 {
		s = s[:i]
	}
	if len(s) != 2 || s[0] < 'a' || s[0] > 'z' || s[1] < 'a' || s[1] > 'z' {
		return ""
	}
	return s
}
