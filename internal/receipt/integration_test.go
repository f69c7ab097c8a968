package receipt_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/expense-scanner/internal/metrics"
	"github.com/zombor/expense-scanner/internal/receipt"
	"github.com/zombor/expense-scanner/internal/scanning"
)

var _ = Describe("Integration", func() {
	var (
		provider    *ghttp.Server
		providerURL string
		app         *ghttp.Server
		apiKey      string
		m           *metrics.Metrics
		resp        *http.Response
		envelope    receipt.ExtractResponse
	)

	jpegData := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")

	upload := func() {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="lunch.jpg"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(jpegData)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err = http.Post(app.URL()+"/api/extract-receipt", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		envelope = receipt.ExtractResponse{}
		Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
	}

	replyWith := func(content string) http.HandlerFunc {
		return ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}

	BeforeEach(func() {
		provider = ghttp.NewServer()
		providerURL = provider.URL()
		app = ghttp.NewServer()
		apiKey = "sk-integration"
		m = metrics.New()
	})

	JustBeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		scanner := scanning.NewOpenAI(scanning.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: providerURL,
			Timeout: 5 * time.Second,
		})
		extractor := scanning.NewExtractor(scanner, m, logger)
		server := receipt.NewServer(extractor, receipt.Config{Metrics: m, Logger: logger})
		app.AppendHandlers(server.ServeHTTP)
		upload()
	})

	AfterEach(func() {
		provider.Close()
		app.Close()
	})

	When("the model answers inside a code fence", func() {
		BeforeEach(func() {
			provider.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer sk-integration"),
				func(w http.ResponseWriter, r *http.Request) {
					body, err := io.ReadAll(r.Body)
					Expect(err).NotTo(HaveOccurred())
					Expect(string(body)).To(ContainSubstring(`"url":"data:image/jpeg;base64,`))
				},
				replyWith("```json\n"+`{"merchant":"Noodle Bar","amount":"1,024.50","currency":"JPY","date":"2024-11-02","category":"Restaurant"}`+"\n```"),
			))
		})

		It("should return the sanitized record", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(envelope.Success).To(BeTrue())
			Expect(*envelope.Data).To(Equal(scanning.ReceiptData{
				Merchant: "Noodle Bar",
				Amount:   1024.5,
				Currency: "JPY",
				Date:     "2024-11-02",
				Category: "Restaurant",
			}))
		})

		It("should call the provider once", func() {
			Expect(provider.ReceivedRequests()).To(HaveLen(1))
		})

		It("should count the success", func() {
			Expect(testutil.ToFloat64(m.Extractions.WithLabelValues("success", ""))).To(Equal(1.0))
		})
	})

	When("the model returns an empty object", func() {
		BeforeEach(func() {
			provider.AppendHandlers(replyWith("{}"))
		})

		It("should return defaults for every field", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(envelope.Data.Merchant).To(Equal("Unknown Merchant"))
			Expect(envelope.Data.Amount).To(Equal(0.0))
			Expect(envelope.Data.Currency).To(Equal("USD"))
			Expect(envelope.Data.Date).To(Equal(time.Now().UTC().Format("2006-01-02")))
			Expect(envelope.Data.Category).To(Equal("Other"))
		})
	})

	When("the model returns prose", func() {
		BeforeEach(func() {
			provider.AppendHandlers(replyWith("This looks like a receipt from a noodle bar."))
		})

		It("should fail with a parse error", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(envelope.Success).To(BeFalse())
			Expect(envelope.Error).To(Equal("Failed to parse receipt data"))
		})
	})

	When("the account has no quota left", func() {
		BeforeEach(func() {
			provider.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"type": "insufficient_quota", "code": "insufficient_quota"},
			}))
		})

		It("should return Payment Required", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusPaymentRequired))
			Expect(envelope.Error).To(ContainSubstring("quota exceeded"))
		})
	})

	When("the key is rejected", func() {
		BeforeEach(func() {
			provider.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"error":{"code":"invalid_api_key"}}`))
		})

		It("should return Unauthorized", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(envelope.Error).To(Equal("Invalid OpenAI API key"))
		})
	})

	When("no API key is configured", func() {
		BeforeEach(func() {
			apiKey = ""
		})

		It("should fail without calling the provider", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(envelope.Error).To(Equal("API key not configured"))
			Expect(provider.ReceivedRequests()).To(BeEmpty())
		})

		It("should count a provider fault", func() {
			Expect(testutil.ToFloat64(m.Extractions.WithLabelValues("MissingCredentials", "provider"))).To(Equal(1.0))
		})
	})

	When("the provider is unreachable", func() {
		BeforeEach(func() {
			// The listener is gone but providerURL still points at its address
			provider.Close()
		})

		It("should hide the transport error", func() {
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(envelope.Success).To(BeFalse())
			Expect(envelope.Error).To(Equal("Failed to extract receipt data"))
		})

		It("should count an internal failure after attempting the call", func() {
			Expect(testutil.ToFloat64(m.Extractions.WithLabelValues("InternalError", "internal"))).To(Equal(1.0))
			Expect(testutil.CollectAndCount(m.ProviderDuration)).To(Equal(1))
		})
	})
})
