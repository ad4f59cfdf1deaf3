package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/bakame-ivr/internal/ai"
	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// BuildLLMClient wires the OpenAI-compatible primary and the optional
// fallback provider. The returned close func releases provider resources.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (ai.LLMClient, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	primary := ai.NewOpenAIClient(cfg.AIAPIKey, cfg.AIBaseURL, &http.Client{Timeout: cfg.AITimeout})

	switch cfg.AIFallbackProvider {
	case "bedrock":
		model := strings.TrimSpace(cfg.BedrockModelID)
		if model == "" {
			logger.Warn("bedrock fallback selected but BEDROCK_MODEL_ID empty; running without fallback")
			return primary, noop, nil
		}
		fallback := &modelPinned{client: ai.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg)), model: model}
		logger.Info("ai fallback enabled", "provider", "bedrock", "model", model)
		return ai.NewFallbackClient(primary, fallback, logger), noop, nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("gemini fallback selected but GEMINI_API_KEY empty; running without fallback")
			return primary, noop, nil
		}
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("ai fallback enabled", "provider", "gemini", "model", cfg.GeminiModel)
		return ai.NewFallbackClient(primary, gemini, logger), gemini.Close, nil
	default:
		return primary, noop, nil
	}
}

// modelPinned swaps the gateway's model name for the fallback provider's own
// model id, since the two providers do not share a catalogue.
type modelPinned struct {
	client ai.LLMClient
	model  string
}

func (m *modelPinned) Complete(ctx context.Context, req ai.LLMRequest) (ai.LLMResponse, error) {
	req.Model = m.model
	return m.client.Complete(ctx, req)
}
