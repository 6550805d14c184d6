package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/xuri/excelize/v2"

	"github.com/invoice-extractor/backend/internal/models"
)

// Format is an export file type.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX, FormatMsgpack:
		return f, nil
	case "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// ContentType returns the MIME type of an export.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatMsgpack:
		return "application/msgpack"
	default:
		return "application/json"
	}
}

// FileName returns a download name stamped with now.
func (f Format) FileName(now time.Time) string {
	return fmt.Sprintf("invoices-%s.%s", now.Format("20060102-150405"), string(f))
}

// Write renders records in format f to w.
func Write(w io.Writer, f Format, records []*models.Extraction, opts Options, now time.Time) error {
	rows := RowsFrom(records, opts)
	switch f {
	case FormatJSON:
		return writeJSON(w, rows, opts)
	case FormatCSV:
		return writeCSV(w, rows, opts)
	case FormatXLSX:
		return writeXLSX(w, rows, Summarize(records), opts, now)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(rows)
	default:
		return fmt.Errorf("unsupported export format: %q", f)
	}
}

type jsonRow struct {
	Merchant      string  `json:"merchant"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Date          string  `json:"date"`
	TotalAmount   string  `json:"totalAmount"`
	Status        string  `json:"status"`
	GSTIN         *string `json:"gstin,omitempty"`
	TaxAmount     *string `json:"taxAmount,omitempty"`
}

func writeJSON(w io.Writer, rows []Row, opts Options) error {
	out := make([]jsonRow, 0, len(rows))
	for _, r := range rows {
		jr := jsonRow{
			Merchant:      r.Merchant,
			InvoiceNumber: r.InvoiceNumber,
			Date:          r.Date,
			TotalAmount:   FormatCurrency(r.TotalAmount, opts.Currency),
			Status:        r.Status,
		}
		if opts.IncludeGST {
			g, tax := r.GSTIN, FormatCurrency(r.TaxAmount, opts.Currency)
			jr.GSTIN, jr.TaxAmount = &g, &tax
		}
		out = append(out, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func csvHeaders(opts Options) []string {
	headers := []string{"Merchant", "Invoice Number", "Date", "Total Amount", "Status"}
	if opts.IncludeGST {
		headers = append(headers, "GSTIN", "Tax Amount")
	}
	return headers
}

func writeCSV(w io.Writer, rows []Row, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders(opts)); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Merchant,
			r.InvoiceNumber,
			r.Date,
			strconv.FormatFloat(r.TotalAmount, 'f', 2, 64),
			r.Status,
		}
		if opts.IncludeGST {
			rec = append(rec, r.GSTIN, strconv.FormatFloat(r.TaxAmount, 'f', 2, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	summarySheet  = "Summary"
	invoicesSheet = "Invoices"
)

func writeXLSX(w io.Writer, rows []Row, sum Summary, opts Options, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("xlsx summary sheet: %w", err)
	}
	summary := [][]any{
		{"Invoice Summary Report"},
		{"Generated on", now.Format("2006-01-02 15:04:05")},
		{"Total Invoices", sum.Succeeded},
		{"Total Amount", FormatCurrency(sum.TotalAmount, opts.Currency)},
		{"Total Tax", FormatCurrency(sum.TotalTax, opts.Currency)},
		{"GST Compliance", fmt.Sprintf("%.2f%%", sum.GSTCompliance)},
		{"Failed Extractions", sum.Failed},
	}
	for i, values := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("xlsx summary row: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 24)

	if _, err := f.NewSheet(invoicesSheet); err != nil {
		return fmt.Errorf("xlsx invoices sheet: %w", err)
	}
	headers := []any{"Merchant", "Invoice Number", "Date"}
	if opts.IncludeGST {
		headers = append(headers, "GSTIN")
	}
	headers = append(headers, "Subtotal", "Tax", "Total Amount", "Status")
	if err := f.SetSheetRow(invoicesSheet, "A1", &headers); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}

	for i, r := range rows {
		values := []any{r.Merchant, r.InvoiceNumber, r.Date}
		if opts.IncludeGST {
			values = append(values, r.GSTIN)
		}
		values = append(values, r.Subtotal, r.TaxAmount, r.TotalAmount, r.Status)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(invoicesSheet, cell, &values); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(invoicesSheet, "A", last, 18)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
