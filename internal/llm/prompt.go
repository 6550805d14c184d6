package llm

// InvoicePrompt asks the model for the invoice fields as a JSON object.
const InvoicePrompt = `Analyze this invoice image. Extract the following fields into a clean JSON format:

merchant_name: The prominent business name (Ignore addresses like 'Tamil Nadu').
gstin: The 15-character GST number (e.g., 29ABCDE1234F1Z5).
date: The invoice date in YYYY-MM-DD format.
total_amount: The final payable amount (number only).
tax_amount: The total tax/GST amount.
invoice_number: The invoice ID.

Return only the JSON.`

// InvoiceFields are the keys the prompt asks for.
var InvoiceFields = []string{
	"merchant_name",
	"gstin",
	"date",
	"total_amount",
	"tax_amount",
	"invoice_number",
}
