package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xuri/excelize/v2"

	"github.com/invoice-extractor/backend/internal/models"
)

var exportTime = time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)

func testRecords() []*models.Extraction {
	return []*models.Extraction{
		{
			ID:         "a",
			FileName:   "a.png",
			Status:     models.ExtractionStatusSucceeded,
			Fields:     json.RawMessage(`{"merchant_name":"Acme Traders","gstin":"29aabct1332l1za","date":"2024-03-31","total_amount":1180,"tax_amount":"₹180.00","invoice_number":"INV-1"}`),
			DurationMs: 1000,
			CreatedAt:  exportTime,
		},
		{
			ID:         "b",
			FileName:   "b.pdf",
			Status:     models.ExtractionStatusSucceeded,
			Fields:     json.RawMessage(`{"merchant_name":"Bharat Stores","gstin":"29ABCDE1234F1Z5","date":"15/02/2024","total_amount":"1,000.50","tax_amount":null,"invoice_number":42}`),
			DurationMs: 2000,
			CreatedAt:  exportTime.Add(-time.Hour),
		},
		{
			ID:         "c",
			FileName:   "c.jpg",
			Status:     models.ExtractionStatusFailed,
			Error:      "Failed to parse AI response",
			DurationMs: 3000,
			CreatedAt:  exportTime.Add(-2 * time.Hour),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"excel", FormatXLSX, false},
		{"msgpack", FormatMsgpack, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1180", 1180},
		{"₹1,180.50", 1180.50},
		{"Rs. 99", 99},
		{"₹ 1,180/-", 1180},
		{"$12.5", 12.5},
		{"n/a", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseAmount(tt.in), 1e-9, "input %q", tt.in)
	}
}

func TestRowsFrom(t *testing.T) {
	opts := DefaultOptions()
	opts.DateFormat = DateDMY
	rows := RowsFrom(testRecords(), opts)
	require.Len(t, rows, 3)

	a := rows[0]
	assert.Equal(t, "Acme Traders", a.Merchant)
	assert.Equal(t, "29AABCT1332L1ZA", a.GSTIN)
	assert.True(t, a.GSTINValid)
	assert.Equal(t, "31-03-2024", a.Date)
	assert.Equal(t, 1180.0, a.TotalAmount)
	assert.Equal(t, 180.0, a.TaxAmount)
	assert.Equal(t, 1000.0, a.Subtotal)
	assert.Equal(t, "INV-1", a.InvoiceNumber)

	b := rows[1]
	assert.False(t, b.GSTINValid)
	assert.Equal(t, "15-02-2024", b.Date)
	assert.Equal(t, 1000.5, b.TotalAmount)
	assert.Equal(t, 0.0, b.TaxAmount)
	assert.Equal(t, "42", b.InvoiceNumber)

	c := rows[2]
	assert.Equal(t, "failed", c.Status)
	assert.Empty(t, c.Merchant)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "03-31-2024", formatDate("2024-03-31", DateMDY))
	assert.Equal(t, "2024-03-31", formatDate("31.03.2024", DateISO))
	assert.Equal(t, "sometime in March", formatDate("sometime in March", DateISO))
	assert.Equal(t, "", formatDate("", DateISO))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "₹1180.00", FormatCurrency(1180, "INR"))
	assert.Equal(t, "$12.50", FormatCurrency(12.5, "USD"))
	assert.Equal(t, "-₹5.00", FormatCurrency(-5, "INR"))
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{DateFormat: "YYYY/MM/DD", Currency: "INR"}.Validate())
	assert.Error(t, Options{DateFormat: DateISO, Currency: "EUR"}.Validate())
}

func TestSummarize(t *testing.T) {
	s := Summarize(testRecords())
	assert.Equal(t, 3, s.DocumentsProcessed)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 50.0, s.GSTCompliance)
	assert.Equal(t, 2180.5, s.TotalAmount)
	assert.Equal(t, 180.0, s.TotalTax)
	assert.Equal(t, 2000.0, s.AverageProcessingMs)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, testRecords()[:1], DefaultOptions(), exportTime))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Acme Traders", out[0]["merchant"])
	assert.Equal(t, "₹1180.00", out[0]["totalAmount"])
	assert.Equal(t, "29AABCT1332L1ZA", out[0]["gstin"])
	assert.Equal(t, "₹180.00", out[0]["taxAmount"])

	buf.Reset()
	opts := DefaultOptions()
	opts.IncludeGST = false
	require.NoError(t, Write(&buf, FormatJSON, testRecords()[:1], opts, exportTime))
	assert.NotContains(t, buf.String(), "gstin")
	assert.NotContains(t, buf.String(), "taxAmount")
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, testRecords(), DefaultOptions(), exportTime))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Merchant", "Invoice Number", "Date", "Total Amount", "Status", "GSTIN", "Tax Amount"}, records[0])
	assert.Equal(t, []string{"Acme Traders", "INV-1", "2024-03-31", "1180.00", "succeeded", "29AABCT1332L1ZA", "180.00"}, records[1])

	buf.Reset()
	opts := DefaultOptions()
	opts.IncludeGST = false
	require.NoError(t, Write(&buf, FormatCSV, testRecords(), opts, exportTime))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records[0], 5)
}

func TestWrite_XLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, testRecords(), DefaultOptions(), exportTime))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Invoices"}, f.GetSheetList())

	title, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice Summary Report", title)

	total, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "₹2180.50", total)

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Merchant", "Invoice Number", "Date", "GSTIN", "Subtotal", "Tax", "Total Amount", "Status"}, rows[0])
	assert.Equal(t, "Acme Traders", rows[1][0])
	assert.Equal(t, "29AABCT1332L1ZA", rows[1][3])
}

func TestWrite_Msgpack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatMsgpack, testRecords(), DefaultOptions(), exportTime))

	var rows []Row
	require.NoError(t, msgpack.NewDecoder(&buf).Decode(&rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Acme Traders", rows[0].Merchant)
	assert.Equal(t, 1180.0, rows[0].TotalAmount)
	assert.True(t, rows[0].ProcessedAt.Equal(exportTime))
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Equal(t, "application/msgpack", FormatMsgpack.ContentType())
	assert.Equal(t, "invoices-20240402-093000.xlsx", FormatXLSX.FileName(exportTime))
}
