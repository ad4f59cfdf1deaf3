package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingSecret is wrapped by Validate for every absent required token.
var ErrMissingSecret = errors.New("config: missing required secret")

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// AI gateway (hosted chat completion)
	AIAPIKey           string
	AIBaseURL          string
	AIModel            string
	AITemperature      float32
	AITimeout          time.Duration
	AIFallbackProvider string
	BedrockModelID     string
	GeminiAPIKey       string
	GeminiModel        string

	// Transcription gateway
	DeepgramAPIKey    string
	DeepgramBaseURL   string
	DeepgramStreamURL string
	DeepgramModel     string
	StreamingEnabled  bool

	// Session store
	RedisHost             string
	RedisPort             int
	RedisPassword         string
	RedisTLS              bool
	SessionTTL            time.Duration
	TranscriptTTL         time.Duration
	HistoryLimit          int
	MemorySessionCapacity int

	// Voice rendering
	Voice           string
	VoiceRate       string
	GatherTimeout   time.Duration
	RecordMaxLength time.Duration
	RecordTimeout   time.Duration

	// Carrier
	TwilioAuthToken string
	RateLimitRPS    float64
	RateLimitBurst  int

	// AnalyticsToken gates GET /sessions/{callSID}/interactions when set.
	AnalyticsToken string

	// AWS (Bedrock fallback and call archive)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ArchiveBucket       string
}

// Load reads configuration from environment variables
func Load() *Config {
	aiKey := getEnv("DEEPSEEK_API_KEY", "")
	if aiKey == "" {
		aiKey = getEnv("AI_API_KEY", "")
	}
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AIAPIKey:           aiKey,
		AIBaseURL:          getEnv("AI_BASE_URL", "https://api.deepseek.com/v1"),
		AIModel:            getEnv("AI_MODEL", "deepseek-chat"),
		AITemperature:      float32(getEnvAsFloat("AI_TEMPERATURE", 0.5)),
		AITimeout:          getEnvAsDuration("AI_TIMEOUT", 20*time.Second),
		AIFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("AI_FALLBACK_PROVIDER", ""))),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		DeepgramAPIKey:    getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramBaseURL:   getEnv("DEEPGRAM_BASE_URL", "https://api.deepgram.com/v1"),
		DeepgramStreamURL: getEnv("DEEPGRAM_STREAM_URL", "wss://api.deepgram.com/v1/listen"),
		DeepgramModel:     getEnv("DEEPGRAM_MODEL", "nova-2"),
		StreamingEnabled:  getEnvAsBool("STREAMING_ENABLED", false),

		RedisHost:             getEnv("REDIS_HOST", ""),
		RedisPort:             getEnvAsInt("REDIS_PORT", 6379),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisTLS:              getEnvAsBool("REDIS_TLS", false),
		SessionTTL:            getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		TranscriptTTL:         getEnvAsDuration("TRANSCRIPT_TTL", 5*time.Minute),
		HistoryLimit:          getEnvAsInt("HISTORY_LIMIT", 40),
		MemorySessionCapacity: getEnvAsInt("MEMORY_SESSION_CAPACITY", 10000),

		Voice:           getEnv("VOICE", "Polly.Brian"),
		VoiceRate:       getEnv("VOICE_RATE", "85%"),
		GatherTimeout:   getEnvAsDuration("GATHER_TIMEOUT", 5*time.Second),
		RecordMaxLength: getEnvAsDuration("RECORD_MAX_LENGTH", 30*time.Second),
		RecordTimeout:   getEnvAsDuration("RECORD_TIMEOUT", 30*time.Second),

		TwilioAuthToken: getEnv("TWILIO_AUTH_TOKEN", ""),
		RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
		AnalyticsToken:  getEnv("ANALYTICS_TOKEN", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
	}
}

// Validate reports every missing required secret at once so the process can
// refuse to start before it accepts a single call.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AIAPIKey) == "" {
		missing = append(missing, "DEEPSEEK_API_KEY")
	}
	if strings.TrimSpace(c.DeepgramAPIKey) == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSecret, strings.Join(missing, ", "))
	}
	switch c.AIFallbackProvider {
	case "", "bedrock", "gemini":
	default:
		return fmt.Errorf("config: unknown AI_FALLBACK_PROVIDER %q", c.AIFallbackProvider)
	}
	return nil
}

// RedisAddr returns host:port, or "" when no redis host is configured.
func (c *Config) RedisAddr() string {
	if strings.TrimSpace(c.RedisHost) == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
