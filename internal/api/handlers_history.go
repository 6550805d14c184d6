// handlers_history.go - Extraction history, export and metrics handlers
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/invoice-extractor/backend/internal/export"
	"github.com/invoice-extractor/backend/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	store storage.Store
	now   func() time.Time
}

// NewHistoryHandler creates a new history handler. A nil store means history
// is disabled and every route answers 503.
func NewHistoryHandler(store storage.Store) HistoryHandler {
	return &HistoryHandlerImpl{store: store, now: time.Now}
}

func (h *HistoryHandlerImpl) disabled() error {
	return NewServiceUnavailableError("extraction history is disabled")
}

// HandleListHistory returns recent extractions, newest first
func (h *HistoryHandlerImpl) HandleListHistory(c echo.Context) error {
	if h.store == nil {
		return h.disabled()
	}

	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewBadRequestError(fmt.Sprintf("invalid limit: %q", v))
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.store.List(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError(fmt.Sprintf("failed to list history: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": records,
		"count": len(records),
	})
}

// HandleGetHistory returns a single extraction
func (h *HistoryHandlerImpl) HandleGetHistory(c echo.Context) error {
	if h.store == nil {
		return h.disabled()
	}

	id := c.Param("id")
	rec, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("extraction", id)
	}
	if err != nil {
		return NewInternalError(fmt.Sprintf("failed to load extraction: %v", err))
	}
	return c.JSON(http.StatusOK, rec)
}

// HandleDeleteHistory removes a single extraction
func (h *HistoryHandlerImpl) HandleDeleteHistory(c echo.Context) error {
	if h.store == nil {
		return h.disabled()
	}

	id := c.Param("id")
	err := h.store.Delete(c.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("extraction", id)
	}
	if err != nil {
		return NewInternalError(fmt.Sprintf("failed to delete extraction: %v", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleExportHistory renders the whole history as a downloadable file
func (h *HistoryHandlerImpl) HandleExportHistory(c echo.Context) error {
	if h.store == nil {
		return h.disabled()
	}

	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError(err.Error())
	}
	opts, err := exportOptions(c)
	if err != nil {
		return NewBadRequestError(err.Error())
	}

	records, err := h.store.List(c.Request().Context(), 0)
	if err != nil {
		return NewInternalError(fmt.Sprintf("failed to list history: %v", err))
	}

	now := h.now()
	var buf bytes.Buffer
	if err := export.Write(&buf, format, records, opts, now); err != nil {
		return NewInternalError(fmt.Sprintf("failed to export history: %v", err))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", format.FileName(now)))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func exportOptions(c echo.Context) (export.Options, error) {
	opts := export.DefaultOptions()
	if v := c.QueryParam("date_format"); v != "" {
		opts.DateFormat = v
	}
	if v := c.QueryParam("currency"); v != "" {
		opts.Currency = v
	}
	if v := c.QueryParam("include_gst"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid include_gst: %q", v)
		}
		opts.IncludeGST = b
	}
	return opts, opts.Validate()
}

// HandleMetrics summarizes the whole history
func (h *HistoryHandlerImpl) HandleMetrics(c echo.Context) error {
	if h.store == nil {
		return h.disabled()
	}

	records, err := h.store.List(c.Request().Context(), 0)
	if err != nil {
		return NewInternalError(fmt.Sprintf("failed to list history: %v", err))
	}
	return c.JSON(http.StatusOK, export.Summarize(records))
}
