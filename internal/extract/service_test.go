package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoice-extractor/backend/internal/llm"
	"github.com/invoice-extractor/backend/internal/models"
	"github.com/invoice-extractor/backend/internal/payload"
	"github.com/invoice-extractor/backend/internal/testutil"
)

const invoiceReply = `{"merchant_name":"Acme Traders","gstin":"29AABCT1332L1ZA","date":"2024-03-31","total_amount":1180,"tax_amount":180,"invoice_number":"INV-1"}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, gen llm.Generator, history *testutil.MockStorage) *Service {
	t.Helper()
	shape, err := llm.NewShapeChecker()
	require.NoError(t, err)

	cfg := Config{
		Generator: gen,
		Shape:     shape,
		Logger:    quietLogger(),
	}
	if history != nil {
		cfg.History = history
	}
	return NewService(cfg)
}

func TestExtract_ParsesModelReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "bare json", reply: invoiceReply},
		{name: "json fence", reply: "```json\n" + invoiceReply + "\n```"},
		{name: "plain fence", reply: "```\n" + invoiceReply + "\n```"},
		{name: "surrounding whitespace", reply: "\n\n  " + invoiceReply + "  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, testutil.NewFakeGenerator(tt.reply), nil)

			res, err := svc.Extract(context.Background(), Upload{
				FileName:    "invoice.png",
				ContentType: "image/png",
				Data:        testutil.PNGBytes(4, 4),
			})
			require.NoError(t, err)

			fields, ok := res.Fields.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "Acme Traders", fields["merchant_name"])
			assert.Equal(t, json.Number("1180"), fields["total_amount"])
			assert.Empty(t, res.Record.Issues)
		})
	}
}

func TestExtract_PDFSentRaw(t *testing.T) {
	gen := testutil.NewFakeGenerator(invoiceReply)
	svc := newTestService(t, gen, nil)
	pdf := testutil.PDFBytes()

	res, err := svc.Extract(context.Background(), Upload{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentKindPDF, res.Record.Kind)

	doc := gen.LastDoc()
	require.NotNil(t, doc)
	assert.Equal(t, payload.MIMEPDF, doc.MIMEType)
	assert.Equal(t, pdf, doc.Data)
	assert.Equal(t, "invoice.pdf", doc.Name)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.InvoicePrompt, calls[0].Prompt)
}

func TestExtract_ImageDecodedFirst(t *testing.T) {
	gen := testutil.NewFakeGenerator(invoiceReply)
	svc := newTestService(t, gen, nil)

	// Declared as octet-stream; the decoder decides the real type.
	res, err := svc.Extract(context.Background(), Upload{
		FileName:    "scan",
		ContentType: "application/octet-stream",
		Data:        testutil.JPEGBytes(6, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentKindImage, res.Record.Kind)
	assert.Equal(t, "image/jpeg", gen.LastDoc().MIMEType)
}

func TestExtract_UndecodableImage(t *testing.T) {
	gen := testutil.NewFakeGenerator(invoiceReply)
	svc := newTestService(t, gen, nil)

	_, err := svc.Extract(context.Background(), Upload{
		FileName:    "broken.png",
		ContentType: "image/png",
		Data:        []byte("not really a png"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot identify image file")
	assert.Empty(t, gen.Calls(), "model must not be called")
}

func TestExtract_Unparseable(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "prose", reply: "I could not read this invoice."},
		{name: "empty", reply: ""},
		{name: "truncated", reply: `{"merchant_name": "Acme`},
		{name: "trailing text", reply: `{"a":1} thanks!`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := testutil.NewMockStorage()
			svc := newTestService(t, testutil.NewFakeGenerator(tt.reply), history)

			_, err := svc.Extract(context.Background(), Upload{
				FileName:    "invoice.pdf",
				ContentType: "application/pdf",
				Data:        testutil.PDFBytes(),
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable))

			recs := history.Records()
			require.Len(t, recs, 1)
			assert.Equal(t, models.ExtractionStatusFailed, recs[0].Status)
			assert.Empty(t, recs[0].Fields)
		})
	}
}

func TestExtract_ModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc := newTestService(t, testutil.NewFailingGenerator(boom), nil)

	_, err := svc.Extract(context.Background(), Upload{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		Data:        testutil.PDFBytes(),
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrUnparseable))
}

func TestExtract_Timeout(t *testing.T) {
	gen := testutil.NewFakeGenerator(invoiceReply)
	gen.Block = true
	svc := NewService(Config{
		Generator: gen,
		Timeout:   20 * time.Millisecond,
		Logger:    quietLogger(),
	})

	_, err := svc.Extract(context.Background(), Upload{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		Data:        testutil.PDFBytes(),
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
}

func TestExtract_RecordsHistory(t *testing.T) {
	history := testutil.NewMockStorage()
	svc := newTestService(t, testutil.NewFakeGenerator(invoiceReply), history)

	res, err := svc.Extract(context.Background(), Upload{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf; charset=binary",
		Data:        testutil.PDFBytes(),
	})
	require.NoError(t, err)

	recs := history.Records()
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, res.Record.ID, rec.ID)
	assert.Equal(t, "invoice.pdf", rec.FileName)
	assert.Equal(t, "application/pdf", rec.MIMEType)
	assert.Equal(t, "fake", rec.Provider)
	assert.Equal(t, "fake-model", rec.Model)
	assert.True(t, rec.Succeeded())
	assert.JSONEq(t, invoiceReply, string(rec.Fields))
	assert.Equal(t, "Acme Traders", rec.FieldMap()["merchant_name"])
}

func TestExtract_HistoryFailureIgnored(t *testing.T) {
	history := testutil.NewMockStorage()
	history.SaveErr = errors.New("disk full")
	svc := newTestService(t, testutil.NewFakeGenerator(invoiceReply), history)

	_, err := svc.Extract(context.Background(), Upload{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		Data:        testutil.PDFBytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, history.SaveCount())
}

func TestExtract_ShapeIssuesKept(t *testing.T) {
	svc := newTestService(t, testutil.NewFakeGenerator(`{"merchant_name": 12}`), nil)

	res, err := svc.Extract(context.Background(), Upload{
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		Data:        testutil.PDFBytes(),
	})
	require.NoError(t, err, "shape problems never fail a request")
	assert.NotEmpty(t, res.Record.Issues)
	assert.Equal(t, map[string]any{"merchant_name": json.Number("12")}, res.Fields)
}

func TestService_Accessors(t *testing.T) {
	history := testutil.NewMockStorage()
	svc := newTestService(t, testutil.NewFakeGenerator(""), history)
	assert.Equal(t, "fake", svc.Provider())
	assert.Equal(t, "fake-model", svc.Model())
	assert.Same(t, history, svc.History())

	assert.Nil(t, newTestService(t, testutil.NewFakeGenerator(""), nil).History())
}
