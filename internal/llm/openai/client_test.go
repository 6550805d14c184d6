package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/invoice-extractor/backend/internal/llm"
	"github.com/invoice-extractor/backend/internal/llm/openai"
)

const responseBody = `{
	"id": "resp_123",
	"object": "response",
	"created_at": 1730000000,
	"model": "gpt-4o-mini",
	"status": "completed",
	"output": [{
		"type": "message",
		"id": "msg_1",
		"role": "assistant",
		"status": "completed",
		"content": [{"type": "output_text", "text": "{\"merchant_name\": \"Acme\"}", "annotations": []}]
	}]
}`

var _ = Describe("Client", func() {
	var (
		srv      *httptest.Server
		client   *openai.Client
		lastPath string
		lastBody map[string]any
		status   int
	)

	BeforeEach(func() {
		status = http.StatusOK
		lastBody = nil
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&lastBody)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(responseBody))
				return
			}
			_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
		}))

		settings := llm.DefaultSettings()
		settings.Model = "gpt-4o-mini"

		var err error
		client, err = openai.NewClient(openai.Config{
			APIKey:   "sk-test",
			BaseURL:  srv.URL + "/",
			Settings: settings,
		}, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		srv.Close()
	})

	Describe("NewClient", func() {
		It("rejects a missing key", func() {
			_, err := openai.NewClient(openai.Config{}, nil)
			Expect(err).To(MatchError(llm.ErrMissingAPIKey))
		})

		It("reports provider and model", func() {
			Expect(client.Provider()).To(Equal("openai"))
			Expect(client.Model()).To(Equal("gpt-4o-mini"))
		})
	})

	Describe("Generate", func() {
		It("returns the output text", func() {
			text, err := client.Generate(context.Background(), llm.InvoicePrompt, &llm.Document{
				Name: "bill.png", MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"merchant_name": "Acme"}`))
			Expect(lastPath).To(HaveSuffix("/responses"))
		})

		It("sends images as input_image data URLs", func() {
			_, err := client.Generate(context.Background(), llm.InvoicePrompt, &llm.Document{
				Name: "bill.png", MIMEType: "image/png", Data: []byte("png-bytes"),
			})
			Expect(err).NotTo(HaveOccurred())

			raw, _ := json.Marshal(lastBody["input"])
			Expect(string(raw)).To(ContainSubstring(`"type":"input_image"`))
			Expect(string(raw)).To(ContainSubstring("data:image/png;base64,"))
			Expect(lastBody["temperature"]).To(BeNumerically("~", 0.1, 1e-6))
			Expect(lastBody["max_output_tokens"]).To(BeNumerically("==", 8192))
		})

		It("sends PDFs as input_file data", func() {
			_, err := client.Generate(context.Background(), llm.InvoicePrompt, &llm.Document{
				Name: "bill.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4"),
			})
			Expect(err).NotTo(HaveOccurred())

			raw, _ := json.Marshal(lastBody["input"])
			Expect(string(raw)).To(ContainSubstring(`"type":"input_file"`))
			Expect(string(raw)).To(ContainSubstring(`"filename":"bill.pdf"`))
			Expect(strings.Count(string(raw), "data:application/pdf;base64,")).To(Equal(1))
		})

		It("wraps upstream failures", func() {
			status = http.StatusBadRequest
			_, err := client.Generate(context.Background(), llm.InvoicePrompt, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("call OpenAI"))
		})
	})
})
