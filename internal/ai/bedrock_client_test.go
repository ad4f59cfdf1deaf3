package ai

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, nil
}

func TestBedrockClient_MapsRolesAndJSONMode(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: ` {"score": 0.2} `}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(4), TotalTokens: aws.Int32(16)},
	}}

	resp, err := NewBedrockClient(api).Complete(context.Background(), LLMRequest{
		Model:  "anthropic.claude-3-haiku",
		System: []string{"tutor"},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "hello"},
			{Role: ChatRoleAssistant, Content: "hi"},
			{Role: ChatRoleUser, Content: "how are you"},
		},
		Temperature: 0.5,
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"score": 0.2}`, resp.Text)
	assert.Equal(t, int32(16), resp.Usage.TotalTokens)
	require.Len(t, api.input.Messages, 3)
	assert.Equal(t, brtypes.ConversationRoleAssistant, api.input.Messages[1].Role)
	assert.Len(t, api.input.System, 2)
	assert.Equal(t, float32(0.5), aws.ToFloat32(api.input.InferenceConfig.Temperature))
}

func TestBedrockClient_EmptyOutput(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{}},
	}}
	_, err := NewBedrockClient(api).Complete(context.Background(), LLMRequest{Model: "m", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
