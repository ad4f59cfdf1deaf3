package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"score: 0.8", 0.8},
		{"The caller seems upset. Score: -0.6", -0.6},
		{`{"score": -0.25}`, -0.25},
		{"score: 7", 1},
		{"score: -3.5", -1},
		{"no number here", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseScore(tt.in), 1e-9)
		})
	}
}

func TestAnalyze_StructuredResponse(t *testing.T) {
	llm := &stubLLM{replies: []string{`{"score": -0.7, "intent": "menu"}`}}
	gw := NewGateway(llm, Options{})

	got := gw.Analyze(context.Background(), "this is useless, take me back")

	assert.InDelta(t, -0.7, got.Score, 1e-9)
	assert.Equal(t, IntentMenu, got.Intent)
	require.Equal(t, 1, llm.calls())
	assert.True(t, llm.requests[0].JSON)
}

func TestAnalyze_FallsBackToTextConvention(t *testing.T) {
	gw := NewGateway(&stubLLM{replies: []string{"intent: question, score: 0.4"}}, Options{})
	got := gw.Analyze(context.Background(), "what does 'whom' mean?")
	assert.InDelta(t, 0.4, got.Score, 1e-9)
	assert.Equal(t, IntentQuestion, got.Intent)
}

func TestAnalyze_ClampsStructuredScore(t *testing.T) {
	gw := NewGateway(&stubLLM{replies: []string{"```json\n{\"score\": 4, \"intent\": \"dance\"}\n```"}}, Options{})
	got := gw.Analyze(context.Background(), "wonderful")
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, IntentOther, got.Intent)
}

func TestAnalyze_FailureIsNeutral(t *testing.T) {
	gw := NewGateway(&stubLLM{err: errors.New("connection reset")}, Options{})
	got := gw.Analyze(context.Background(), "hello")
	assert.Zero(t, got.Score)
	assert.Equal(t, IntentOther, got.Intent)
}
