// Package payload validates upload content types and prepares upload bytes
// for the model: PDFs are passed through, images are decoded first.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/invoice-extractor/backend/internal/models"
)

const (
	MIMEPDF         = "application/pdf"
	MIMEOctetStream = "application/octet-stream"
	MIMEJPEG        = "image/jpeg"
)

var pdfMagic = []byte("%PDF-")

// ErrEmptyFile is returned when an upload has no content.
var ErrEmptyFile = errors.New("uploaded file is empty")

// Payload is an upload ready to be sent to the model.
type Payload struct {
	Kind     models.DocumentKind
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// Normalize reduces a Content-Type header to its lower-cased media type.
func Normalize(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// AllowList is the set of accepted upload media types.
type AllowList struct {
	types map[string]struct{}
	order []string
}

// NewAllowList builds an allow-list from media types. Entries are normalized.
func NewAllowList(types []string) *AllowList {
	a := &AllowList{types: make(map[string]struct{}, len(types))}
	for _, t := range types {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, dup := a.types[n]; dup {
			continue
		}
		a.types[n] = struct{}{}
		a.order = append(a.order, n)
	}
	return a
}

// Allowed reports whether contentType is in the list.
func (a *AllowList) Allowed(contentType string) bool {
	_, ok := a.types[Normalize(contentType)]
	return ok
}

// Types returns the accepted media types in configuration order.
func (a *AllowList) Types() []string {
	return append([]string(nil), a.order...)
}

// Encoder turns upload bytes into a Payload.
type Encoder struct {
	decode DecodeFunc
}

// NewEncoder creates an encoder. A nil decode uses DecodeImage.
func NewEncoder(decode DecodeFunc) *Encoder {
	if decode == nil {
		decode = DecodeImage
	}
	return &Encoder{decode: decode}
}

// Encode prepares data declared as contentType. PDFs are never decoded.
// application/octet-stream is sniffed for the PDF signature and otherwise
// treated as an image.
func (e *Encoder) Encode(data []byte, contentType string) (*Payload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	mt := Normalize(contentType)
	if mt == MIMEPDF || (mt == MIMEOctetStream && IsPDF(data)) {
		return &Payload{Kind: models.DocumentKindPDF, MIMEType: MIMEPDF, Data: data}, nil
	}

	img, err := e.decode(data)
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}

	return &Payload{
		Kind:     models.DocumentKindImage,
		MIMEType: img.MIMEType,
		Data:     data,
		Width:    img.Width,
		Height:   img.Height,
	}, nil
}

// IsPDF reports whether data starts with the PDF signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}
