package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/bakame-ivr/cmd/mainconfig"
	"github.com/wolfman30/bakame-ivr/internal/ai"
	"github.com/wolfman30/bakame-ivr/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
	"github.com/wolfman30/bakame-ivr/internal/transcription"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// gatewaytest exercises the AI gateway (and, given a recording URL argument,
// the transcription gateway) with the same wiring the API server uses.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		log.Fatalf("ai client: %v", err)
	}
	defer closeLLM()

	gateway := ai.NewGateway(llm, ai.Options{
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout,
		Logger:      logger,
	})

	fmt.Println("[1] Generate")
	start := time.Now()
	reply := gateway.Generate(ctx, ai.Prompt{Text: "Tell me an interesting fact about English language history."})
	fmt.Printf("    degraded=%v (%v)\n    %s\n", reply.Degraded, time.Since(start).Round(time.Millisecond), reply.Text)

	fmt.Println("[2] Analyze")
	analysis := gateway.Analyze(ctx, "I am so tired of this, nothing works!")
	fmt.Printf("    score=%.2f intent=%s\n", analysis.Score, analysis.Intent)

	fmt.Println("[3] DetectLanguage / Translate")
	lang := gateway.DetectLanguage(ctx, "Muraho, amakuru yawe?")
	fmt.Printf("    detected=%s\n    %s\n", lang, gateway.Translate(ctx, "Invalid choice. Please try again.", lang))

	if len(os.Args) < 2 {
		fmt.Println("[4] Skipping transcription (pass a recording URL to test it)")
		return
	}
	if cfg.DeepgramAPIKey == "" {
		fmt.Println("[4] Skipping transcription (DEEPGRAM_API_KEY not set)")
		return
	}
	fmt.Println("[4] Transcribe")
	dg := transcription.NewDeepgramClient(cfg.DeepgramAPIKey, transcription.DeepgramOptions{
		BaseURL: cfg.DeepgramBaseURL,
		Model:   cfg.DeepgramModel,
		Logger:  logger,
	})
	tr := dg.Transcribe(ctx, os.Args[1])
	fmt.Printf("    available=%v confidence=%.2f\n    %s\n", tr.Available, tr.Confidence, tr.Text)
}
