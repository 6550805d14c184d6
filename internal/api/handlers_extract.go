// handlers_extract.go - Invoice upload handler
package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/invoice-extractor/backend/internal/extract"
	"github.com/invoice-extractor/backend/internal/payload"
)

const uploadField = "file"

// ExtractHandlerImpl implements the ExtractHandler interface
type ExtractHandlerImpl struct {
	extractor     Extractor
	allowed       *payload.AllowList
	maxFileSize   int64
	exposeDetails bool
	logger        *slog.Logger
}

// NewExtractHandler creates a new extract handler
func NewExtractHandler(extractor Extractor, allowed *payload.AllowList, maxFileSize int64, exposeDetails bool, logger *slog.Logger) ExtractHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractHandlerImpl{
		extractor:     extractor,
		allowed:       allowed,
		maxFileSize:   maxFileSize,
		exposeDetails: exposeDetails,
		logger:        logger,
	}
}

// HandleExtract accepts a multipart upload in field "file" and returns the
// invoice fields the model produced.
func (h *ExtractHandlerImpl) HandleExtract(c echo.Context) error {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		if isBodyTooLarge(err) {
			return NewPayloadTooLargeError(h.maxFileSize)
		}
		return NewValidationError(uploadField)
	}

	// Size is checked before type: any oversized upload is a 413.
	if fh.Size > h.maxFileSize {
		h.logger.Info("extract.rejected", "reason", "too_large", "size", fh.Size, "remote_ip", c.RealIP())
		return NewPayloadTooLargeError(h.maxFileSize)
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if !h.allowed.Allowed(contentType) {
		h.logger.Info("extract.rejected", "reason", "unsupported_type", "content_type", contentType, "remote_ip", c.RealIP())
		return NewUnsupportedMediaTypeError(contentType)
	}

	data, err := readUpload(fh, h.maxFileSize)
	if err != nil {
		if isBodyTooLarge(err) {
			return NewPayloadTooLargeError(h.maxFileSize)
		}
		return NewBadRequestError("failed to read uploaded file")
	}

	res, err := h.extractor.Extract(c.Request().Context(), extract.Upload{
		FileName:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, extract.ErrUnparseable) {
			return NewInternalError(msgParseFailed)
		}
		if h.exposeDetails {
			return NewInternalError(err.Error())
		}
		return NewInternalError(msgUnexpected)
	}

	return c.JSON(http.StatusOK, res.Fields)
}

// readUpload reads at most limit+1 bytes so a lying multipart header cannot
// push an oversized body through.
func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, echo.ErrStatusRequestEntityTooLarge
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return true
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
		return true
	}
	// net/http flattens some reader errors into text.
	msg := err.Error()
	return strings.Contains(msg, "Request Entity Too Large") || strings.Contains(msg, "request body too large")
}
