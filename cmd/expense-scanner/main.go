package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/expense-scanner/internal/metrics"
	"github.com/zombor/expense-scanner/internal/receipt"
	"github.com/zombor/expense-scanner/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	cfg, fs, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize scanner", "provider", cfg.Provider, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	if !scanner.Configured() {
		slog.Warn("No API key configured; extraction requests will fail until one is set", "provider", scanner.Name())
	}

	m := metrics.New()
	extractor := scanning.NewExtractor(scanner, m, slog.Default())
	server := receipt.NewServer(extractor, receipt.Config{
		AllowedOrigin: cfg.FrontendURL,
		Metrics:       m,
		Logger:        slog.Default(),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"provider", scanner.Name(),
		"frontend", cfg.FrontendURL,
		"version", version,
	)

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}

// newScanner builds the vision client selected by cfg.Provider
func newScanner(ctx context.Context, cfg *config) (scanning.Scanner, error) {
	switch cfg.Provider {
	case "openai":
		slog.Info("Initializing OpenAI scanner...", "model", cfg.OpenAIModel, "url", cfg.OpenAIURL)
		return scanning.NewOpenAI(scanning.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}), nil
	case "gemini":
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel)
		return scanning.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("invalid provider %q", cfg.Provider)
	}
}
