package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the model omits a field or returns garbage for it.
const (
	DefaultMerchant = "Unknown Merchant"
	DefaultCurrency = "USD"
	DefaultCategory = "Other"

	dateLayout = "2006-01-02"
)

var (
	codeFencePattern  = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	datePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	leadingNumber     = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	thousandSeparator = regexp.MustCompile(`(\d),(\d{3})`)
)

// stripCodeFences removes markdown code fence markers (with or without a
// language tag) wherever they appear.
func stripCodeFences(text string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
}

// DecodeReply turns the raw model reply into a single JSON object.
func DecodeReply(text string) (map[string]any, error) {
	text = stripCodeFences(text)

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, newError(KindUnparsableResponse, fmt.Errorf("unmarshaling json: %w", err))
	}
	if obj == nil {
		return nil, newError(KindUnparsableResponse, errors.New("reply is not a JSON object"))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(KindUnparsableResponse, errors.New("unexpected content after JSON object"))
	}
	return obj, nil
}

// SanitizeReceipt converts a decoded reply into a fully populated record.
// Every field falls back to its default on its own; it never fails.
func SanitizeReceipt(obj map[string]any, today time.Time) *ReceiptData {
	data := &ReceiptData{
		Merchant: DefaultMerchant,
		Currency: DefaultCurrency,
		Date:     today.UTC().Format(dateLayout),
		Category: DefaultCategory,
	}

	if s, ok := coerceText(obj["merchant"]); ok {
		data.Merchant = s
	}
	data.Amount = coerceAmount(obj["amount"])
	if s, ok := coerceText(obj["currency"]); ok {
		data.Currency = s
	}
	if s, ok := obj["date"].(string); ok && datePattern.MatchString(s) {
		data.Date = s
	}
	if s, ok := coerceText(obj["category"]); ok {
		data.Category = s
	}

	// Note: negative amounts are passed through as returned by the model.

	return data
}

// ParseReceipt decodes and sanitizes a model reply in one step.
func ParseReceipt(text string, today time.Time) (*ReceiptData, error) {
	obj, err := DecodeReply(text)
	if err != nil {
		return nil, err
	}
	return SanitizeReceipt(obj, today), nil
}

// coerceText accepts non-blank strings, returned as given, and non-zero numbers.
func coerceText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, strings.TrimSpace(t) != ""
	case json.Number:
		f, err := t.Float64()
		if err != nil || f == 0 {
			return "", false
		}
		return t.String(), true
	default:
		return "", false
	}
}

// coerceAmount reads a number or a numeric-looking string, like a lenient
// float parse. Anything else, including NaN and infinities, becomes 0.
func coerceAmount(v any) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	case float64:
		f = t
	case string:
		f = parseLeadingFloat(t)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseLeadingFloat parses the numeric prefix of s. Unlike a plain prefix
// parse, thousands separators are removed first so "1,234.56" reads as
// 1234.56 rather than 1.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	for {
		next := thousandSeparator.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
