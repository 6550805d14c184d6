// Package export renders extraction history as downloadable files and
// computes summary metrics over it.
package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/invoice-extractor/backend/internal/gstin"
	"github.com/invoice-extractor/backend/internal/models"
)

// Date formats accepted in Options.DateFormat.
const (
	DateISO = "YYYY-MM-DD"
	DateDMY = "DD-MM-YYYY"
	DateMDY = "MM-DD-YYYY"
)

var dateLayouts = map[string]string{
	DateISO: "2006-01-02",
	DateDMY: "02-01-2006",
	DateMDY: "01-02-2006",
}

// Layouts tried when reading a model-provided date, most likely first.
var inputDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC3339,
}

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
}

// Options control how rows are rendered.
type Options struct {
	DateFormat string
	Currency   string
	IncludeGST bool
}

// DefaultOptions returns ISO dates, rupees and GST columns.
func DefaultOptions() Options {
	return Options{DateFormat: DateISO, Currency: "INR", IncludeGST: true}
}

// Validate rejects unknown date formats and currencies.
func (o Options) Validate() error {
	if _, ok := dateLayouts[o.DateFormat]; !ok {
		return fmt.Errorf("unsupported date format: %q", o.DateFormat)
	}
	if _, ok := currencySymbols[o.Currency]; !ok {
		return fmt.Errorf("unsupported currency: %q", o.Currency)
	}
	return nil
}

// Row is one extraction flattened for export.
type Row struct {
	ID            string    `json:"id" msgpack:"id"`
	FileName      string    `json:"fileName" msgpack:"fileName"`
	Merchant      string    `json:"merchant" msgpack:"merchant"`
	InvoiceNumber string    `json:"invoiceNumber" msgpack:"invoiceNumber"`
	Date          string    `json:"date" msgpack:"date"`
	GSTIN         string    `json:"gstin,omitempty" msgpack:"gstin,omitempty"`
	GSTINValid    bool      `json:"gstinValid" msgpack:"gstinValid"`
	Subtotal      float64   `json:"subtotal" msgpack:"subtotal"`
	TaxAmount     float64   `json:"taxAmount" msgpack:"taxAmount"`
	TotalAmount   float64   `json:"totalAmount" msgpack:"totalAmount"`
	Status        string    `json:"status" msgpack:"status"`
	ProcessedAt   time.Time `json:"processedAt" msgpack:"processedAt"`
}

// RowsFrom flattens records. Fields the model left out or mistyped become
// zero values.
func RowsFrom(records []*models.Extraction, opts Options) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		fields := rec.FieldMap()

		row := Row{
			ID:            rec.ID,
			FileName:      rec.FileName,
			Merchant:      stringField(fields, "merchant_name"),
			InvoiceNumber: stringField(fields, "invoice_number"),
			Date:          formatDate(stringField(fields, "date"), opts.DateFormat),
			TaxAmount:     amountField(fields, "tax_amount"),
			TotalAmount:   amountField(fields, "total_amount"),
			Status:        string(rec.Status),
			ProcessedAt:   rec.CreatedAt,
		}
		if g := stringField(fields, "gstin"); g != "" {
			row.GSTIN = gstin.Normalize(g)
			row.GSTINValid = gstin.Validate(g)
		}
		row.Subtotal = round2(row.TotalAmount - row.TaxAmount)
		rows = append(rows, row)
	}
	return rows
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func amountField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		return ParseAmount(v)
	default:
		return 0
	}
}

// ParseAmount reads a money amount such as "₹1,180.50" or "Rs. 99". Text
// that holds no number yields 0.
func ParseAmount(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	// "₹1,180/-" leaves a trailing dash.
	clean := strings.TrimRight(strings.TrimLeft(b.String(), "."), ".-")
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatDate(raw, format string) string {
	if raw == "" {
		return ""
	}
	layout, ok := dateLayouts[format]
	if !ok {
		layout = dateLayouts[DateISO]
	}
	for _, in := range inputDateLayouts {
		if t, err := time.Parse(in, raw); err == nil {
			return t.Format(layout)
		}
	}
	return raw
}

// FormatCurrency renders v with the symbol for currency.
func FormatCurrency(v float64, currency string) string {
	sym, ok := currencySymbols[currency]
	if !ok {
		sym = currencySymbols["INR"]
	}
	if v < 0 {
		return "-" + sym + strconv.FormatFloat(-v, 'f', 2, 64)
	}
	return sym + strconv.FormatFloat(v, 'f', 2, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
