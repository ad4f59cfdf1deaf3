package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/bakame-ivr/cmd/mainconfig"
	"github.com/wolfman30/bakame-ivr/internal/ai"
	"github.com/wolfman30/bakame-ivr/internal/api/router"
	"github.com/wolfman30/bakame-ivr/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
	"github.com/wolfman30/bakame-ivr/internal/dialogue"
	"github.com/wolfman30/bakame-ivr/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bakame-ivr/internal/http/middleware"
	"github.com/wolfman30/bakame-ivr/internal/observability/metrics"
	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/internal/transcription"
	"github.com/wolfman30/bakame-ivr/internal/voice"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

func main() {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bakame-ivr",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, ivrMetrics := setupMetrics()

	// Sessions
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	store, backend, err := bootstrap.BuildSessionStore(redisClient, cfg, otel.Tracer("bakame.internal.session"), logger)
	if err != nil {
		logger.Error("failed to build session store", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(store, session.Options{
		TTL:           cfg.SessionTTL,
		TranscriptTTL: cfg.TranscriptTTL,
		HistoryLimit:  cfg.HistoryLimit,
		Logger:        logger,
		Errors:        ivrMetrics,
	})

	// AI and transcription gateways
	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build AI client", "error", err)
		os.Exit(1)
	}
	defer closeLLM()
	gateway := ai.NewGateway(llm, ai.Options{
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout,
		Logger:      logger,
		Metrics:     ivrMetrics,
	})
	transcriber := transcription.NewDeepgramClient(cfg.DeepgramAPIKey, transcription.DeepgramOptions{
		BaseURL: cfg.DeepgramBaseURL,
		Model:   cfg.DeepgramModel,
		Logger:  logger,
		Metrics: ivrMetrics,
	})

	// Call flow
	machine := dialogue.NewMachine(gateway, transcriber, dialogue.Options{
		GatherTimeout:   cfg.GatherTimeout,
		RecordMaxLength: cfg.RecordMaxLength,
		RecordTimeout:   cfg.RecordTimeout,
		HistoryLimit:    sessions.HistoryLimit(),
		StreamURL:       mediaStreamURL(cfg),
		Logger:          logger,
	})
	service := dialogue.NewService(machine, sessions, ivrMetrics, logger)

	routerCfg := &router.Config{
		Logger: logger,
		IVR: handlers.NewIVRHandler(handlers.IVRHandlerConfig{
			Runner:   service,
			Renderer: voice.NewRenderer(cfg.Voice, cfg.VoiceRate),
			Logger:   logger,
		}),
		Interactions:    handlers.NewInteractionsHandler(sessions, logger),
		MetricsHandler:  metricsHandler,
		TwilioAuthToken: cfg.TwilioAuthToken,
		PublicBaseURL:   cfg.PublicBaseURL,
		AnalyticsToken:  cfg.AnalyticsToken,
	}
	var archiver handlers.CallArchiver
	if a := bootstrap.BuildCallArchiver(awsCfg, cfg, logger); a != nil {
		archiver = a
	}
	routerCfg.CallStatus = handlers.NewCallStatusHandler(sessions, archiver, logger)
	if cfg.StreamingEnabled {
		routerCfg.MediaStream = handlers.NewMediaStreamHandler(deepgramDialer(cfg), sessions, logger)
	}
	if cfg.RateLimitRPS > 0 {
		limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.Run(ctx)
		routerCfg.RateLimiter = limiter
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router.New(routerCfg),
		ReadTimeout: 15 * time.Second,
		// AI calls are bounded by AI_TIMEOUT; leave room for two per turn.
		WriteTimeout: 2*cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "session_store", backend, "streaming", cfg.StreamingEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.IVRMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewIVRMetrics(registry)
}

// mediaStreamURL is the websocket the welcome prompt asks the carrier to
// stream audio to, or "" when streaming is off.
func mediaStreamURL(cfg *appconfig.Config) string {
	if !cfg.StreamingEnabled || cfg.PublicBaseURL == "" {
		return ""
	}
	base := cfg.PublicBaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimRight(base, "/") + "/media-stream"
}

func deepgramDialer(cfg *appconfig.Config) handlers.StreamDialer {
	return func(ctx context.Context) (transcription.StreamConn, error) {
		return transcription.DialDeepgram(ctx, cfg.DeepgramAPIKey, transcription.StreamOptions{
			URL:   cfg.DeepgramStreamURL,
			Model: cfg.DeepgramModel,
		})
	}
}
