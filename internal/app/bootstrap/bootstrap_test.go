package bootstrap

import (
	"context"
	"io"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bakame-ivr/internal/ai"
	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

func quietLogger() *logging.Logger { return logging.NewWithWriter("error", io.Discard) }

func TestBuildRedisClientDisabledWithoutHost(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, quietLogger(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, quietLogger(), true))
}

func TestBuildRedisClientVerifiesConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisHost: mr.Host(), RedisPort: mustPort(t, mr.Port())}

	client := BuildRedisClient(context.Background(), cfg, quietLogger(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, quietLogger(), true))
}

func TestBuildSessionStoreFallsBackToMemory(t *testing.T) {
	store, backend, err := BuildSessionStore(nil, &appconfig.Config{MemorySessionCapacity: 8}, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "memory", backend)
	assert.IsType(t, &session.MemoryStore{}, store)
}

func TestBuildSessionStoreUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisHost: mr.Host(), RedisPort: mustPort(t, mr.Port())}
	client := BuildRedisClient(context.Background(), cfg, quietLogger(), true)
	require.NotNil(t, client)
	defer client.Close()

	store, backend, err := BuildSessionStore(client, cfg, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "redis", backend)
	assert.IsType(t, &session.RedisStore{}, store)
}

func TestBuildLLMClientRequiresConfig(t *testing.T) {
	_, _, err := BuildLLMClient(context.Background(), nil, aws.Config{}, quietLogger())
	assert.Error(t, err)
}

func TestBuildLLMClientFallbackSelection(t *testing.T) {
	tests := []struct {
		name         string
		cfg          appconfig.Config
		wantFallback bool
	}{
		{"none", appconfig.Config{AIAPIKey: "k"}, false},
		{"bedrock without model", appconfig.Config{AIAPIKey: "k", AIFallbackProvider: "bedrock"}, false},
		{"bedrock", appconfig.Config{AIAPIKey: "k", AIFallbackProvider: "bedrock", BedrockModelID: "anthropic.claude-3-haiku"}, true},
		{"gemini without key", appconfig.Config{AIAPIKey: "k", AIFallbackProvider: "gemini"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, closeFn, err := BuildLLMClient(context.Background(), &tt.cfg, aws.Config{Region: "us-east-1"}, quietLogger())
			require.NoError(t, err)
			require.NotNil(t, closeFn)
			defer closeFn()
			_, isFallback := client.(*ai.FallbackClient)
			assert.Equal(t, tt.wantFallback, isFallback)
		})
	}
}

func TestBuildCallArchiverDisabledWithoutBucket(t *testing.T) {
	assert.Nil(t, BuildCallArchiver(aws.Config{}, &appconfig.Config{}, quietLogger()))
}

func TestBuildCallArchiverEnabled(t *testing.T) {
	cfg := &appconfig.Config{ArchiveBucket: "bakame-calls", AWSRegion: "us-east-1", AWSEndpointOverride: "http://localhost:4566"}
	assert.NotNil(t, BuildCallArchiver(aws.Config{Region: "us-east-1"}, cfg, quietLogger()))
}

func mustPort(t *testing.T, raw string) int {
	t.Helper()
	port, err := strconv.Atoi(raw)
	require.NoError(t, err)
	return port
}
