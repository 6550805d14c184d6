// Package gemini implements llm.Generator on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/invoice-extractor/backend/internal/llm"
)

const providerName = "gemini"

// Config for the Gemini client.
type Config struct {
	APIKey   string
	BaseURL  string // empty uses the public endpoint
	Settings llm.Settings
}

// Client wraps a genai client. It is safe for concurrent use.
type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

// ModelInfo describes a model returned by ListModels.
type ModelInfo struct {
	Name        string
	DisplayName string
	Actions     []string
}

// NewClient builds a Gemini client. A missing or placeholder key returns
// llm.ErrMissingAPIKey.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if !llm.KeyConfigured(cfg.APIKey) {
		return nil, llm.ErrMissingAPIKey
	}
	if cfg.Settings.Model == "" {
		cfg.Settings = llm.DefaultSettings()
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{cfg: cfg, client: client, logger: logger}, nil
}

func (c *Client) Provider() string { return providerName }
func (c *Client) Model() string    { return c.cfg.Settings.Model }

// Generate sends the prompt and document as one user turn and returns the
// concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, doc *llm.Document) (string, error) {
	return c.generate(ctx, c.cfg.Settings.Model, prompt, doc, c.generationConfig())
}

// Ping sends a short text prompt to model with a small token budget.
func (c *Client) Ping(ctx context.Context, model, prompt string, maxTokens int32) (string, error) {
	if model == "" {
		model = c.cfg.Settings.Model
	}
	return c.generate(ctx, model, prompt, nil, &genai.GenerateContentConfig{MaxOutputTokens: maxTokens})
}

// ListModels returns models that support generateContent.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for m, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		out = append(out, ModelInfo{
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Actions:     m.SupportedActions,
		})
	}
	return out, nil
}

func (c *Client) generate(ctx context.Context, model, prompt string, doc *llm.Document, gc *genai.GenerateContentConfig) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if doc != nil {
		parts = append(parts, genai.NewPartFromBytes(doc.Data, doc.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	c.logger.Debug("llm.gemini.start",
		"req_id", rid,
		"model", model,
		"has_document", doc != nil,
	)

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		c.logger.Error("llm.gemini.error",
			"req_id", rid, "model", model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := blockReason(resp)
		c.logger.Warn("llm.gemini.empty",
			"req_id", rid, "model", model, "reason", reason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if reason != "" {
			return "", errors.New("model returned no text: " + reason)
		}
	}

	c.logger.Debug("llm.gemini.ok",
		"req_id", rid,
		"model", model,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) generationConfig() *genai.GenerateContentConfig {
	s := c.cfg.Settings
	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(s.Temperature),
		TopP:             genai.Ptr(s.TopP),
		MaxOutputTokens:  s.MaxOutputTokens,
		ResponseMIMEType: s.ResponseMIMEType,
	}
	if s.TopK > 0 {
		gc.TopK = genai.Ptr(s.TopK)
	}
	return gc
}

// blockReason explains an empty response when the API says why.
func blockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" &&
		resp.Candidates[0].FinishReason != genai.FinishReasonStop {
		return "finish reason " + string(resp.Candidates[0].FinishReason)
	}
	return ""
}
