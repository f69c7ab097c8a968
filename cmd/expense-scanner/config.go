package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"gopkg.in/yaml.v3"
)

// config is the parsed command line, environment and config file
type config struct {
	Port        int
	Provider    string
	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	Timeout     time.Duration
	FrontendURL string
	LogLevel    slog.Level
	ShowVersion bool
}

// parseConfig parses args, EXPENSE_SCANNER_* variables and an optional YAML
// config file. getenv supplies the unprefixed key fallbacks.
func parseConfig(args []string, getenv func(string) string) (*config, *ff.FlagSet, error) {
	fs := ff.NewFlagSet("expense-scanner")
	var (
		port           = fs.IntLong("port", 3001, "HTTP server port")
		provider       = fs.StringLong("provider", "openai", "Vision provider: 'openai', 'gemini' or 'ollama'")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		openaiURL      = fs.StringLong("openai-url", "https://api.openai.com/v1", "OpenAI API base URL")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		timeoutSeconds = fs.IntLong("timeout-seconds", 60, "Timeout for each vision model call, in seconds")
		frontendURL    = fs.StringLong("frontend-url", "", "Frontend origin allowed by CORS (or set FRONTEND_URL env var)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion    = fs.BoolLong("version", "Show version information")
		_              = fs.StringLong("config", "", "YAML config file")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("EXPENSE_SCANNER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(parseYAML),
	); err != nil {
		return nil, fs, err
	}

	cfg := &config{
		Port:        *port,
		Provider:    strings.ToLower(strings.TrimSpace(*provider)),
		OpenAIKey:   *openaiKey,
		OpenAIModel: *openaiModel,
		OpenAIURL:   *openaiURL,
		GeminiKey:   *geminiKey,
		GeminiModel: *geminiModel,
		OllamaURL:   *ollamaURL,
		OllamaModel: *ollamaModel,
		Timeout:     time.Duration(*timeoutSeconds) * time.Second,
		FrontendURL: *frontendURL,
		ShowVersion: *showVersion,
	}

	// Fall back to the variable names the provider SDKs use
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = getenv("OPENAI_API_KEY")
	}
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = getenv("GEMINI_API_KEY")
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = getenv("FRONTEND_URL")
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:5173"
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, fs, fmt.Errorf("parsing log level: %w", err)
	}
	if *timeoutSeconds <= 0 {
		return nil, fs, errors.New("timeout-seconds must be positive")
	}
	switch cfg.Provider {
	case "openai", "gemini", "ollama":
	default:
		return nil, fs, fmt.Errorf("invalid provider %q: must be openai, gemini or ollama", cfg.Provider)
	}

	return cfg, fs, nil
}

// parseYAML reads a flat YAML mapping of flag names to values. Lists set the
// flag once per element.
func parseYAML(r io.Reader, set func(name, value string) error) error {
	var m map[string]any
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding yaml config: %w", err)
	}

	for name, raw := range m {
		values := []any{raw}
		if list, ok := raw.([]any); ok {
			values = list
		}
		for _, v := range values {
			if v == nil {
				continue
			}
			if _, ok := v.(map[string]any); ok {
				return fmt.Errorf("config key %q: nested values are not supported", name)
			}
			if err := set(name, fmt.Sprint(v)); err != nil {
				return fmt.Errorf("config key %q: %w", name, err)
			}
		}
	}
	return nil
}
