// Package llm holds the model-facing contracts of the extraction pipeline:
// the fixed prompt, generation settings, and helpers that turn model text
// into JSON.
package llm

import (
	"context"
	"errors"
	"strings"
)

// PlaceholderAPIKey is the sample value from .env templates. It counts as unset.
const PlaceholderAPIKey = "YOUR_NEW_API_KEY_HERE"

var (
	// ErrMissingAPIKey is returned when no usable credential was configured.
	ErrMissingAPIKey = errors.New("model API key is not configured")

	// ErrUnparseable marks model output that is not valid JSON.
	ErrUnparseable = errors.New("model response is not valid JSON")
)

// Document is the file attached to a generation request.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Settings are the generation parameters sent with every request.
type Settings struct {
	Model            string
	Temperature      float32
	TopP             float32
	TopK             float32
	MaxOutputTokens  int32
	ResponseMIMEType string
}

// DefaultSettings returns the settings used for invoice extraction.
func DefaultSettings() Settings {
	return Settings{
		Model:            "gemini-2.5-flash-lite",
		Temperature:      0.1,
		TopP:             0.95,
		TopK:             64,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	}
}

// Generator sends a prompt plus an optional document to a model and returns
// the raw response text. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, doc *Document) (string, error)
	Provider() string
	Model() string
}

// KeyConfigured reports whether key is a usable credential.
func KeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

// Unavailable is a Generator that fails every call with the error that
// prevented the real client from being built.
type Unavailable struct {
	ProviderName string
	ModelName    string
	Err          error
}

func (u *Unavailable) Generate(context.Context, string, *Document) (string, error) {
	return "", u.Err
}

func (u *Unavailable) Provider() string { return u.ProviderName }
func (u *Unavailable) Model() string    { return u.ModelName }
