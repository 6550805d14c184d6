package export

import (
	"github.com/invoice-extractor/backend/internal/models"
)

// Summary aggregates extraction history.
type Summary struct {
	DocumentsProcessed  int     `json:"documentsProcessed"`
	Succeeded           int     `json:"succeeded"`
	Failed              int     `json:"failed"`
	GSTCompliance       float64 `json:"gstCompliance"`
	TotalAmount         float64 `json:"totalAmount"`
	TotalTax            float64 `json:"totalTax"`
	AverageProcessingMs float64 `json:"averageProcessingMs"`
}

// Summarize computes totals over records. GSTCompliance is the percentage of
// successful extractions whose GSTIN validates; totals only count successes.
func Summarize(records []*models.Extraction) Summary {
	var (
		s         Summary
		compliant int
		duration  int64
	)

	rows := RowsFrom(records, DefaultOptions())
	for i, rec := range records {
		s.DocumentsProcessed++
		duration += rec.DurationMs
		if !rec.Succeeded() {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.TotalAmount += rows[i].TotalAmount
		s.TotalTax += rows[i].TaxAmount
		if rows[i].GSTINValid {
			compliant++
		}
	}

	if s.Succeeded > 0 {
		s.GSTCompliance = round2(float64(compliant) * 100 / float64(s.Succeeded))
	}
	if s.DocumentsProcessed > 0 {
		s.AverageProcessingMs = round2(float64(duration) / float64(s.DocumentsProcessed))
	}
	s.TotalAmount = round2(s.TotalAmount)
	s.TotalTax = round2(s.TotalTax)
	return s
}
