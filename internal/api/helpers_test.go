package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/invoice-extractor/backend/internal/config"
	"github.com/invoice-extractor/backend/internal/extract"
	"github.com/invoice-extractor/backend/internal/llm"
	"github.com/invoice-extractor/backend/internal/storage"
	"github.com/invoice-extractor/backend/internal/testutil"
)

const invoiceJSON = `{"merchant_name":"Acme Traders","gstin":"29AABCT1332L1ZA","date":"2024-03-31","total_amount":1180,"tax_amount":180,"invoice_number":"INV-1"}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.AppConfig {
	cfg := config.DefaultConfig()
	cfg.Advanced.EnableRequestLogging = false
	return cfg
}

type testServer struct {
	e       *echo.Echo
	gen     *testutil.FakeGenerator
	history *testutil.MockStorage
}

// newTestServer wires the full router around a fake model. A nil history
// disables the history routes.
func newTestServer(t *testing.T, cfg *config.AppConfig, gen *testutil.FakeGenerator, history *testutil.MockStorage) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	var store storage.Store
	if history != nil {
		store = history
	}

	shape, err := llm.NewShapeChecker()
	require.NoError(t, err)

	svc := extract.NewService(extract.Config{
		Generator: gen,
		Shape:     shape,
		History:   store,
		Logger:    discardLogger(),
	})

	handlers := NewHandlers(&Dependencies{
		Config:    cfg,
		Extractor: svc,
		History:   store,
		Provider:  gen.Provider(),
		Model:     gen.Model(),
		Version:   "test",
		Logger:    discardLogger(),
	})

	return &testServer{
		e:       NewRouter(cfg, handlers, nil, discardLogger()),
		gen:     gen,
		history: history,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// uploadRequest builds a POST /extract with one file part.
func uploadRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set(echo.HeaderContentType, contentType)
	}
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr), rec.Body.String())
	return apiErr
}
