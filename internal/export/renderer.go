package export

import (
	"context"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

// FormatXLSX is the only format the built-in renderer produces.
const FormatXLSX = "xlsx"

// Renderer turns an invoice record into a downloadable document.
type Renderer interface {
	// Render produces the file bytes for the record. The returned content
	// type matches the format.
	Render(ctx context.Context, record *domain.InvoiceRecord) (content []byte, contentType string, err error)
	// Format names the renderer's output format, recorded on the export
	// audit entry.
	Format() string
}
