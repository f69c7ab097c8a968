package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/expense-scanner/internal/metrics"
	"github.com/zombor/expense-scanner/internal/requestctx"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Extractor runs one receipt through intake, prompting, the vision model and
// sanitization. It holds no per-request state and is safe for concurrent use.
type Extractor struct {
	scanner    Scanner
	metrics    *metrics.Metrics
	logger     *slog.Logger
	timeSource TimeSource
}

// NewExtractor creates an Extractor with the default time source
func NewExtractor(scanner Scanner, m *metrics.Metrics, logger *slog.Logger) *Extractor {
	return NewExtractorWithDeps(scanner, m, logger, &defaultTimeSource{})
}

// NewExtractorWithDeps creates an Extractor with custom dependencies for testing
func NewExtractorWithDeps(scanner Scanner, m *metrics.Metrics, logger *slog.Logger, timeSrc TimeSource) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		scanner:    scanner,
		metrics:    m,
		logger:     logger,
		timeSource: timeSrc,
	}
}

// Provider returns the name of the configured vision provider.
func (e *Extractor) Provider() string {
	return e.scanner.Name()
}

// Configured reports whether the provider has credentials. It never calls the provider.
func (e *Extractor) Configured() bool {
	return e.scanner.Configured()
}

// Extract validates the image, asks the model to read it and returns a
// sanitized record. Every returned error is a classified *Error.
func (e *Extractor) Extract(ctx context.Context, img Image) (*ReceiptData, error) {
	reqID := requestctx.RequestID(ctx)

	data, err := e.extract(ctx, reqID, img)
	if err != nil {
		se := Classify(err)
		e.metrics.ObserveExtraction(se.Kind.String(), string(se.Kind.Class()))

		level := slog.LevelError
		if se.Kind.Class() == ClassClient {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "Failed to extract receipt",
			"req_id", reqID,
			"filename", img.Filename,
			"content_type", img.ContentType,
			"file_size", len(img.Data),
			"kind", se.Kind.String(),
			"error", err,
		)
		return nil, se
	}

	e.metrics.ObserveExtraction("success", "")
	e.logger.Info("Extracted receipt",
		"req_id", reqID,
		"merchant", data.Merchant,
		"amount", data.Amount,
		"currency", data.Currency,
		"date", data.Date,
		"category", data.Category,
	)
	return data, nil
}

func (e *Extractor) extract(ctx context.Context, reqID string, img Image) (*ReceiptData, error) {
	if err := ValidateImage(&img); err != nil {
		return nil, err
	}
	e.metrics.ObserveUpload(int64(len(img.Data)))

	prompt := BuildPrompt(img)

	if !e.scanner.Configured() {
		return nil, newError(KindMissingCredentials, fmt.Errorf("%s scanner has no api key", e.scanner.Name()))
	}

	e.logger.Info("Processing receipt",
		"req_id", reqID,
		"provider", e.scanner.Name(),
		"filename", img.Filename,
		"file_size", len(img.Data),
	)

	start := time.Now()
	text, err := e.scanner.Complete(ctx, prompt)
	e.metrics.ObserveProviderCall(e.scanner.Name(), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}
	e.logger.Debug("Vision model reply", "req_id", reqID, "content", text)

	obj, err := DecodeReply(text)
	if err != nil {
		return nil, err
	}
	if drift := CheckReply(obj); drift != nil {
		e.logger.Warn("Vision model reply drifted from requested shape", "req_id", reqID, "error", drift)
	}

	data := SanitizeReceipt(obj, e.timeSource.Now())
	if err := ValidateRecord(data); err != nil {
		return nil, fmt.Errorf("validating receipt data: %w", err)
	}
	return data, nil
}
