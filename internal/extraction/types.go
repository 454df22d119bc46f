package extraction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Document is the uploaded file handed to the remote engine.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Options tunes a single extraction call.
type Options struct {
	// UseCache asks for a cached result when byte-identical content was
	// extracted before. Cache affects extraction cost, not record identity.
	UseCache bool
	// UseValidation asks the remote engine to pre-validate extracted fields.
	UseValidation bool
	// ProximityHint influences the engine's field-matching heuristics.
	ProximityHint *int
}

// LineItem mirrors one entry of the engine's line_items array.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Fields is the normalized field map produced by the engine. Pointer fields
// distinguish "engine did not return this" from empty values.
type Fields struct {
	InvoiceNumber *string
	InvoiceDate   *time.Time
	CompanyName   *string
	TotalAmount   *decimal.Decimal
	CurrencyCode  string
	Contact       string
	Notes         string
	Tags          []string
	Sector        string
	Vendor        string
	LineItems     []LineItem
}

// Result is a successful extraction.
type Result struct {
	// ProcessingID correlates idempotent retries and cache hits on the
	// engine side.
	ProcessingID string
	Fields       Fields
	RawText      string
	CompleteText string
	// PreValidation carries the engine's own per-field pre-validation
	// verdicts when UseValidation was requested. Advisory only; the
	// pipeline's ValidationEngine is authoritative.
	PreValidation  map[string]bool
	ProcessingTime time.Duration
	Metadata       map[string]any
	// CacheHit is true when the result was served from the local
	// content-hash cache without a remote call.
	CacheHit bool
}

// Extractor is the port the orchestrator depends on.
type Extractor interface {
	Extract(ctx context.Context, doc Document, opts Options) (*Result, error)
}
