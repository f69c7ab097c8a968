package scanning

import "encoding/base64"

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `Analyze this receipt image and extract the following information in JSON format:

{
  "merchant": "the store/business name",
  "amount": the total amount as a number (just the number, no currency symbol),
  "currency": "the currency code (e.g., USD, EUR, GBP)",
  "date": "the date in YYYY-MM-DD format",
  "category": "a suggested category (e.g., Groceries, Restaurant, Gas, Shopping, Transportation, Healthcare, Entertainment, Utilities, Other)"
}

IMPORTANT:
- Extract the TOTAL amount (not subtotals or individual items)
- If you can't find specific information, use reasonable defaults:
  - merchant: "Unknown Merchant"
  - amount: 0
  - currency: "USD"
  - date: today's date
  - category: "Other"
- Return ONLY the JSON object, no additional text or explanation
- Make sure the JSON is valid and properly formatted`

// Prompt is everything a provider needs for one completion call.
type Prompt struct {
	Text     string
	MIMEType string
	Data     []byte
	Base64   string
	DataURI  string
}

// BuildPrompt encodes a validated image and pairs it with the extraction instructions.
func BuildPrompt(img Image) Prompt {
	mimeType := NormalizeContentType(img.ContentType)
	encoded := base64.StdEncoding.EncodeToString(img.Data)
	return Prompt{
		Text:     receiptScanPrompt,
		MIMEType: mimeType,
		Data:     img.Data,
		Base64:   encoded,
		DataURI:  "data:" + mimeType + ";base64," + encoded,
	}
}
