package scanning

import "context"

// Default generation settings shared by every provider.
const (
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.2
)

// Image is an uploaded receipt photo. It is owned by a single request.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// ReceiptData contains extracted information from a receipt
type ReceiptData struct {
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Category string  `json:"category"`
}

// Scanner sends a receipt prompt to a multimodal model and returns the raw reply text.
type Scanner interface {
	// Name identifies the provider, e.g. "openai"
	Name() string
	// Configured reports whether the provider has the credentials it needs
	Configured() bool
	// Complete performs a single completion call and returns the first choice's text
	Complete(ctx context.Context, prompt Prompt) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
