package receipt

import (
	"context"

	"github.com/zombor/expense-scanner/internal/scanning"
)

// Extractor turns an uploaded image into receipt data
type Extractor interface {
	Extract(ctx context.Context, img scanning.Image) (*scanning.ReceiptData, error)
	Provider() string
	Configured() bool
}

// ExtractResponse is the body returned by the extract endpoint
type ExtractResponse struct {
	Success bool                  `json:"success"`
	Data    *scanning.ReceiptData `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// HealthResponse is the body returned by the health endpoint
type HealthResponse struct {
	Status                string `json:"status"`
	Timestamp             string `json:"timestamp"`
	Provider              string `json:"provider"`
	CredentialsConfigured bool   `json:"credentialsConfigured"`
}
