package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig configures the OpenAI chat completions scanner.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string  // default https://api.openai.com/v1
	Model       string  // default gpt-4o-mini
	MaxTokens   int     // zero means DefaultMaxTokens
	Temperature float64 // zero means DefaultTemperature
	Timeout     time.Duration
}

// OpenAI implements the Scanner interface using OpenAI chat completions
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI creates a new OpenAI Scanner instance. An empty API key is
// allowed; every call then fails with KindMissingCredentials.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Name returns the provider name
func (o *OpenAI) Name() string {
	return "openai"
}

// Configured reports whether an API key is set
func (o *OpenAI) Configured() bool {
	return o.cfg.APIKey != ""
}

// Complete sends the prompt and image to chat completions and returns the first choice's text
func (o *OpenAI) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if !o.Configured() {
		return "", &Error{Kind: KindMissingCredentials, Message: "OpenAI API key not configured"}
	}

	reqBody := openAIChatRequest{
		Model: o.cfg.Model,
		Messages: []openAIMessage{
			{
				Role: "user",
				Content: []openAIContentPart{
					{Type: "text", Text: prompt.Text},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: prompt.DataURI}},
				},
			},
		},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling openai API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyOpenAIError(resp.StatusCode, body)
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", &Error{Kind: KindEmptyModelResponse, Message: "Empty response from OpenAI", Err: errors.New("no choices in openai response")}
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", &Error{Kind: KindEmptyModelResponse, Message: "Empty response from OpenAI"}
	}
	return text, nil
}

// classifyOpenAIError maps a non-2xx chat completions response to an *Error.
func classifyOpenAIError(status int, body []byte) error {
	var apiErr openAIErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	cause := fmt.Errorf("openai API error (status %d): %s", status, strings.TrimSpace(string(body)))

	switch {
	case apiErr.Error.Code == "insufficient_quota" || apiErr.Error.Type == "insufficient_quota":
		return &Error{Kind: KindQuotaExceeded, Message: "OpenAI API quota exceeded. Please check your billing.", Err: cause}
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindInvalidCredentials, Message: "Invalid OpenAI API key", Err: cause}
	default:
		return newError(KindInternal, cause)
	}
}

// Close closes the OpenAI client (no-op for HTTP client)
func (o *OpenAI) Close() error {
	return nil
}
