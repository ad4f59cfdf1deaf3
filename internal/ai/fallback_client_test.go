package ai

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

func TestFallbackClient(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	ctx := context.Background()
	req := LLMRequest{Model: "deepseek-chat", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}}

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubLLM{replies: []string{"from primary"}}
		fallback := &stubLLM{replies: []string{"from fallback"}}
		resp, err := NewFallbackClient(primary, fallback, logger).Complete(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "from primary", resp.Text)
		assert.Zero(t, fallback.calls())
	})

	t.Run("fallback rescues", func(t *testing.T) {
		primary := &stubLLM{err: errors.New("503")}
		fallback := &stubLLM{replies: []string{"from fallback"}}
		resp, err := NewFallbackClient(primary, fallback, logger).Complete(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "from fallback", resp.Text)
	})

	t.Run("no fallback returns primary error", func(t *testing.T) {
		primaryErr := errors.New("503")
		_, err := NewFallbackClient(&stubLLM{err: primaryErr}, nil, logger).Complete(ctx, req)
		assert.ErrorIs(t, err, primaryErr)
	})

	t.Run("both fail returns fallback error", func(t *testing.T) {
		fallbackErr := errors.New("throttled")
		_, err := NewFallbackClient(&stubLLM{err: errors.New("503")}, &stubLLM{err: fallbackErr}, logger).Complete(ctx, req)
		assert.ErrorIs(t, err, fallbackErr)
	})
}
