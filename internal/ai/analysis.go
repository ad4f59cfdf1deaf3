package ai

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Intent labels for a caller utterance.
const (
	IntentQuestion  = "question"
	IntentStatement = "statement"
	IntentMenu      = "menu"
	IntentGoodbye   = "goodbye"
	IntentOther     = "other"
)

var intents = []string{IntentQuestion, IntentStatement, IntentMenu, IntentGoodbye, IntentOther}

const analysisSystemPrompt = `Analyse the caller's words.
Return a JSON object {"score": <number>, "intent": "<label>"} where score is the sentiment from -1 (very negative) to 1 (very positive)
and intent is one of "question", "statement", "menu" (they want to go back to the main menu), "goodbye" or "other".`

// Analysis is the sentiment and intent of one utterance.
type Analysis struct {
	Score  float64
	Intent string
}

var scorePattern = regexp.MustCompile(`(?i)score"?\s*[:=]?\s*([-+]?(?:\d+(?:\.\d*)?|\.\d+))`)

// Analyze scores the transcript. Failures yield a neutral score and IntentOther.
func (g *Gateway) Analyze(ctx context.Context, transcript string) Analysis {
	neutral := Analysis{Score: 0, Intent: IntentOther}
	if strings.TrimSpace(transcript) == "" {
		return neutral
	}
	resp, err := g.complete(ctx, "analyze", LLMRequest{
		Model:       g.model,
		System:      []string{analysisSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: transcript}},
		Temperature: classifyTemperature,
		JSON:        true,
	})
	if err != nil {
		g.logger.Warn("ai analysis degraded", "error", err)
		return neutral
	}
	return parseAnalysis(resp.Text)
}

func parseAnalysis(text string) Analysis {
	var structured struct {
		Score  *float64 `json:"score"`
		Intent string   `json:"intent"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &structured); err == nil {
		out := Analysis{Intent: matchIntent(structured.Intent)}
		if structured.Score != nil {
			out.Score = clampScore(*structured.Score)
		}
		return out
	}
	return Analysis{Score: ParseScore(text), Intent: matchIntent(text)}
}

// ParseScore reads a "score: <number>" convention from free text. A missing
// or unparsable score is 0. The result is clamped to [-1, 1].
func ParseScore(text string) float64 {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return clampScore(v)
}

func clampScore(v float64) float64 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}

func matchIntent(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, label := range intents {
		if lower == label {
			return label
		}
	}
	for _, label := range intents {
		if strings.Contains(lower, `"`+label+`"`) || strings.Contains(lower, "intent: "+label) {
			return label
		}
	}
	return IntentOther
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
