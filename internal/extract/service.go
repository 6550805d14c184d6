// Package extract runs an uploaded invoice through the model and turns the
// model's reply into JSON.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invoice-extractor/backend/internal/llm"
	"github.com/invoice-extractor/backend/internal/models"
	"github.com/invoice-extractor/backend/internal/payload"
	"github.com/invoice-extractor/backend/internal/storage"
)

// ErrUnparseable is returned when the model reply is not JSON after fence
// stripping. It wraps llm.ErrUnparseable.
var ErrUnparseable = llm.ErrUnparseable

// Upload is one file received by the API.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Result is a successful extraction.
type Result struct {
	// Fields is the parsed model output, exactly as the model shaped it.
	Fields any
	Record *models.Extraction
}

// Config wires a Service.
type Config struct {
	Generator llm.Generator
	Encoder   *payload.Encoder
	Shape     *llm.ShapeChecker // optional
	History   storage.Store     // optional
	Prompt    string
	Timeout   time.Duration // per model call; zero means none
	Logger    *slog.Logger
}

// Service is the extraction pipeline. It is safe for concurrent use.
type Service struct {
	gen     llm.Generator
	encoder *payload.Encoder
	shape   *llm.ShapeChecker
	history storage.Store
	prompt  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service, filling unset options with defaults.
func NewService(cfg Config) *Service {
	if cfg.Encoder == nil {
		cfg.Encoder = payload.NewEncoder(nil)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = llm.InvoicePrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		gen:     cfg.Generator,
		encoder: cfg.Encoder,
		shape:   cfg.Shape,
		history: cfg.History,
		prompt:  cfg.Prompt,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// Provider returns the configured model provider.
func (s *Service) Provider() string { return s.gen.Provider() }

// Model returns the configured model name.
func (s *Service) Model() string { return s.gen.Model() }

// History returns the history store, or nil when history is disabled.
func (s *Service) History() storage.Store { return s.history }

// Extract encodes the upload, asks the model for the invoice fields and
// parses the reply. Every failure is terminal; nothing is retried.
func (s *Service) Extract(ctx context.Context, up Upload) (*Result, error) {
	start := s.now()
	rec := &models.Extraction{
		ID:        uuid.New().String(),
		FileName:  up.FileName,
		MIMEType:  payload.Normalize(up.ContentType),
		Size:      int64(len(up.Data)),
		Provider:  s.gen.Provider(),
		Model:     s.gen.Model(),
		CreatedAt: start.UTC(),
	}
	log := s.logger.With("req_id", rec.ID)

	log.Info("extract.start",
		"file_name", up.FileName,
		"content_type", rec.MIMEType,
		"size", rec.Size,
		"provider", rec.Provider,
		"model", rec.Model,
	)

	p, err := s.encoder.Encode(up.Data, up.ContentType)
	if err != nil {
		log.Warn("extract.encode_failed", "error", err)
		s.finish(ctx, rec, start, nil, err)
		return nil, err
	}
	rec.Kind = p.Kind

	text, err := s.generate(ctx, p, up.FileName)
	if err != nil {
		log.Error("extract.model_failed",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		s.finish(ctx, rec, start, nil, err)
		return nil, err
	}

	fields, err := llm.ParseJSON(llm.StripFences(text))
	if err != nil {
		log.Error("extract.parse_failed",
			"error", err,
			"response_len", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		s.finish(ctx, rec, start, nil, err)
		return nil, err
	}

	if s.shape != nil {
		if rec.Issues = s.shape.Check(fields); len(rec.Issues) > 0 {
			log.Warn("extract.shape_mismatch", "issues", rec.Issues)
		}
	}

	s.finish(ctx, rec, start, fields, nil)
	log.Info("extract.ok",
		"kind", rec.Kind,
		"elapsed_ms", rec.DurationMs,
	)
	return &Result{Fields: fields, Record: rec}, nil
}

func (s *Service) generate(ctx context.Context, p *payload.Payload, name string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.Generate(ctx, s.prompt, &llm.Document{
		Name:     name,
		MIMEType: p.MIMEType,
		Data:     p.Data,
	})
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("model call timed out after %s: %w", s.timeout, err)
	}
	return text, err
}

// finish completes rec and records it. History failures are logged only.
func (s *Service) finish(ctx context.Context, rec *models.Extraction, start time.Time, fields any, failure error) {
	rec.DurationMs = s.now().Sub(start).Milliseconds()
	if failure != nil {
		rec.Status = models.ExtractionStatusFailed
		rec.Error = failure.Error()
	} else {
		rec.Status = models.ExtractionStatusSucceeded
		raw, err := llm.CompactJSON(fields)
		if err == nil {
			rec.Fields = raw
		}
	}

	if s.history == nil {
		return
	}
	// The request context may already be cancelled by the client.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Save(saveCtx, rec); err != nil {
		s.logger.Warn("extract.history_save_failed", "req_id", rec.ID, "error", err)
	}
}
