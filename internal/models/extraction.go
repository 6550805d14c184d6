package models

import (
	"encoding/json"
	"time"
)

// ExtractionStatus represents the outcome of an extraction.
type ExtractionStatus string

const (
	ExtractionStatusSucceeded ExtractionStatus = "succeeded"
	ExtractionStatusFailed    ExtractionStatus = "failed"
)

// DocumentKind is how an upload was sent to the model.
type DocumentKind string

const (
	DocumentKindPDF   DocumentKind = "pdf"
	DocumentKindImage DocumentKind = "image"
)

// Extraction is one recorded call to the extraction pipeline.
type Extraction struct {
	ID         string           `json:"id" msgpack:"id"`
	FileName   string           `json:"fileName" msgpack:"fileName"`
	MIMEType   string           `json:"mimeType" msgpack:"mimeType"`
	Size       int64            `json:"size" msgpack:"size"`
	Kind       DocumentKind     `json:"kind,omitempty" msgpack:"kind,omitempty"`
	Provider   string           `json:"provider" msgpack:"provider"`
	Model      string           `json:"model" msgpack:"model"`
	Status     ExtractionStatus `json:"status" msgpack:"status"`
	Fields     json.RawMessage  `json:"fields,omitempty" msgpack:"-"`
	Issues     []string         `json:"issues,omitempty" msgpack:"issues,omitempty"`
	Error      string           `json:"error,omitempty" msgpack:"error,omitempty"`
	DurationMs int64            `json:"durationMs" msgpack:"durationMs"`
	CreatedAt  time.Time        `json:"createdAt" msgpack:"createdAt"`
}

// Succeeded reports whether the model output was parsed.
func (e *Extraction) Succeeded() bool {
	return e.Status == ExtractionStatusSucceeded
}

// FieldMap decodes Fields as a JSON object. Non-object output yields nil.
func (e *Extraction) FieldMap() map[string]any {
	if len(e.Fields) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(e.Fields, &m); err != nil {
		return nil
	}
	return m
}
