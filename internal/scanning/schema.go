package scanning

import (
	"errors"
	"fmt"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// replySchema is the shape requested from the model. Replies that drift from
// it are still sanitized; the check only feeds logging.
var replySchema = jsonschema.MustCompileString("reply.json", `{
  "type": "object",
  "properties": {
    "merchant": {"type": "string", "minLength": 1},
    "amount":   {"type": "number"},
    "currency": {"type": "string", "minLength": 3, "maxLength": 3},
    "date":     {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "category": {"type": "string", "minLength": 1}
  },
  "required": ["merchant", "amount", "currency", "date", "category"]
}`)

// recordSchema is the output contract of a sanitized record.
var recordSchema = jsonschema.MustCompileString("record.json", `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "merchant": {"type": "string", "minLength": 1},
    "amount":   {"type": "number"},
    "currency": {"type": "string", "minLength": 1},
    "date":     {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "category": {"type": "string", "minLength": 1}
  },
  "required": ["merchant", "amount", "currency", "date", "category"]
}`)

// CheckReply reports how a decoded reply deviates from the requested shape.
func CheckReply(obj map[string]any) error {
	if err := replySchema.Validate(obj); err != nil {
		return fmt.Errorf("reply does not match schema: %w", err)
	}
	return nil
}

// ValidateRecord checks a sanitized record against the output contract.
func ValidateRecord(data *ReceiptData) error {
	if data == nil {
		return errors.New("nil receipt data")
	}
	if math.IsNaN(data.Amount) || math.IsInf(data.Amount, 0) {
		return fmt.Errorf("amount is not finite: %v", data.Amount)
	}
	doc := map[string]any{
		"merchant": data.Merchant,
		"amount":   data.Amount,
		"currency": data.Currency,
		"date":     data.Date,
		"category": data.Category,
	}
	if err := recordSchema.Validate(doc); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
