package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance. Without an API key the
// scanner is created unconfigured and every call fails with KindMissingCredentials.
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	if apiKey == "" {
		return &Gemini{}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetMaxOutputTokens(DefaultMaxTokens)
	model.SetTemperature(DefaultTemperature)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Name returns the provider name
func (g *Gemini) Name() string {
	return "gemini"
}

// Configured reports whether the client was created with an API key
func (g *Gemini) Configured() bool {
	return g.client != nil
}

// Complete sends the image and prompt to Gemini and returns the reply text
func (g *Gemini) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if !g.Configured() {
		return "", &Error{Kind: KindMissingCredentials, Message: "Gemini API key not configured"}
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type (e.g., "image/png")
	parts := []genai.Part{
		genai.ImageData(imageFormat(prompt.MIMEType), prompt.Data),
		genai.Text(prompt.Text),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	return geminiReplyText(resp)
}

// geminiReplyText joins the text parts of the first candidate.
func geminiReplyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Kind: KindEmptyModelResponse, Message: "Empty response from Gemini"}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", &Error{Kind: KindEmptyModelResponse, Message: "Empty response from Gemini"}
	}
	return text, nil
}

// imageFormat converts a MIME type to the suffix genai expects.
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(NormalizeContentType(mimeType), "image/")
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

// classifyGeminiError maps Gemini API failures onto error kinds.
func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("generating content: %w", err)
	}

	switch {
	case gerr.Code == http.StatusTooManyRequests || strings.Contains(gerr.Message, "RESOURCE_EXHAUSTED"):
		return &Error{Kind: KindQuotaExceeded, Message: "Gemini API quota exceeded. Please check your billing.", Err: err}
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden ||
		strings.Contains(gerr.Message, "API key not valid"):
		return &Error{Kind: KindInvalidCredentials, Message: "Invalid Gemini API key", Err: err}
	default:
		return newError(KindInternal, fmt.Errorf("generating content: %w", err))
	}
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
