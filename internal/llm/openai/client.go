// Package openai implements llm.Generator on the OpenAI Responses API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/invoice-extractor/backend/internal/llm"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

// Config for the OpenAI client.
type Config struct {
	APIKey     string
	BaseURL    string // empty uses the public endpoint
	Settings   llm.Settings
	MaxRetries int // negative keeps the SDK default
}

// Client sends extraction requests through the Responses API. Top-k is not
// supported there and is ignored.
type Client struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient builds an OpenAI client. A missing key returns llm.ErrMissingAPIKey.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if !llm.KeyConfigured(cfg.APIKey) {
		return nil, llm.ErrMissingAPIKey
	}
	if cfg.Settings.Model == "" {
		cfg.Settings.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client, cfg: cfg, logger: logger}, nil
}

func (c *Client) Provider() string { return providerName }
func (c *Client) Model() string    { return c.cfg.Settings.Model }

// Generate sends the prompt with the document inlined as a data URL.
func (c *Client) Generate(ctx context.Context, prompt string, doc *llm.Document) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	content := responses.ResponseInputMessageContentListParam{
		{OfInputText: &responses.ResponseInputTextParam{Text: prompt}},
	}
	if doc != nil {
		content = append(content, documentPart(doc))
	}

	s := c.cfg.Settings
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(s.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
		Temperature: openai.Float(float64(s.Temperature)),
		TopP:        openai.Float(float64(s.TopP)),
	}
	if s.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(s.MaxOutputTokens))
	}
	if s.ResponseMIMEType == "application/json" {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	}

	c.logger.Debug("llm.openai.start",
		"req_id", rid,
		"model", s.Model,
		"has_document", doc != nil,
	)

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		c.logger.Error("llm.openai.error",
			"req_id", rid, "model", s.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("call OpenAI: %w", err)
	}

	output := resp.OutputText()
	if output == "" {
		return "", errors.New("model returned an empty response")
	}

	c.logger.Debug("llm.openai.ok",
		"req_id", rid,
		"model", s.Model,
		"text_len", len(output),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return output, nil
}

func documentPart(doc *llm.Document) responses.ResponseInputContentUnionParam {
	dataURL := "data:" + doc.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data)

	if doc.MIMEType == "application/pdf" {
		name := doc.Name
		if name == "" {
			name = "invoice.pdf"
		}
		return responses.ResponseInputContentUnionParam{
			OfInputFile: &responses.ResponseInputFileParam{
				FileData: openai.String(dataURL),
				Filename: openai.String(name),
			},
		}
	}

	return responses.ResponseInputContentUnionParam{
		OfInputImage: &responses.ResponseInputImageParam{
			ImageURL: openai.String(dataURL),
			Detail:   responses.ResponseInputImageDetailAuto,
		},
	}
}
