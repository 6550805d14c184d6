package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// invoiceSchema accepts every encoding the model has been seen to use for
// each field.
const invoiceSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "merchant_name":  {"type": ["string", "null"]},
    "gstin":          {"type": ["string", "null"]},
    "date":           {"type": ["string", "null"]},
    "total_amount":   {"type": ["number", "string", "null"]},
    "tax_amount":     {"type": ["number", "string", "null"]},
    "invoice_number": {"type": ["string", "number", "null"]}
  },
  "required": ["merchant_name", "gstin", "date", "total_amount", "tax_amount", "invoice_number"]
}`

// ShapeChecker compares parsed model output with the expected invoice shape.
type ShapeChecker struct {
	schema *jsonschema.Schema
}

// NewShapeChecker compiles the invoice schema.
func NewShapeChecker() (*ShapeChecker, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", strings.NewReader(invoiceSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ShapeChecker{schema: schema}, nil
}

// Check returns one line per schema violation, sorted. An empty result means
// the value has the expected shape. v must come from ParseJSON.
func (s *ShapeChecker) Check(v any) []string {
	err := s.schema.Validate(v)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}

	var issues []string
	collectIssues(verr, &issues)
	sort.Strings(issues)
	return issues
}

func collectIssues(e *jsonschema.ValidationError, out *[]string) {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+e.Message)
		return
	}
	for _, c := range e.Causes {
		collectIssues(c, out)
	}
}
