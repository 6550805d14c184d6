// handlers_gstin.go - GSTIN lookup handler
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/invoice-extractor/backend/internal/gstin"
)

// GSTINHandlerImpl implements the GSTINHandler interface
type GSTINHandlerImpl struct{}

// NewGSTINHandler creates a new GSTIN handler
func NewGSTINHandler() GSTINHandler {
	return &GSTINHandlerImpl{}
}

// HandleCheckGSTIN validates a GSTIN and reports its state and display form.
// An invalid GSTIN is still a 200; only an empty parameter is rejected.
func (h *GSTINHandlerImpl) HandleCheckGSTIN(c echo.Context) error {
	raw := strings.TrimSpace(c.Param("gstin"))
	if raw == "" {
		return NewValidationError("gstin")
	}
	return c.JSON(http.StatusOK, gstin.Check(raw))
}
