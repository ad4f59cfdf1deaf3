package ai

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, nil
}

func TestOpenAIClient_RequestShape(t *testing.T) {
	fake := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "  Well done!  "}, FinishReason: openai.FinishReasonStop}},
	}}
	client := newOpenAIClientWith(fake)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:       "deepseek-chat",
		System:      []string{"tutor", "  "},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: "Provide an encouraging response to: I like it"}},
		Temperature: 0.5,
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Well done!", resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	require.Len(t, fake.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
	require.NotNil(t, fake.req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fake.req.ResponseFormat.Type)
}

func TestOpenAIClient_RejectsUnknownRole(t *testing.T) {
	client := newOpenAIClientWith(&fakeChat{})
	_, err := client.Complete(context.Background(), LLMRequest{Model: "m", Messages: []ChatMessage{{Role: "tool", Content: "x"}}})
	assert.Error(t, err)
}
