// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/invoice-extractor/backend/internal/extract"
)

// ExtractHandler handles invoice uploads
type ExtractHandler interface {
	HandleExtract(c echo.Context) error
}

// HistoryHandler handles extraction history, exports and metrics
type HistoryHandler interface {
	HandleListHistory(c echo.Context) error
	HandleGetHistory(c echo.Context) error
	HandleDeleteHistory(c echo.Context) error
	HandleExportHistory(c echo.Context) error
	HandleMetrics(c echo.Context) error
}

// GSTINHandler handles GSTIN lookups
type GSTINHandler interface {
	HandleCheckGSTIN(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Extractor runs the extraction pipeline.
// This allows mocking in tests
type Extractor interface {
	Extract(ctx context.Context, up extract.Upload) (*extract.Result, error)
}
