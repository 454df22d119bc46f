package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSXRenderer renders one invoice record as a two-sheet workbook: a
// field/value summary and the extracted line items.
type XLSXRenderer struct{}

var _ Renderer = (*XLSXRenderer)(nil)

// NewXLSXRenderer creates the workbook renderer.
func NewXLSXRenderer() *XLSXRenderer {
	return &XLSXRenderer{}
}

// Format implements Renderer.
func (r *XLSXRenderer) Format() string {
	return FormatXLSX
}

// Render implements Renderer.
func (r *XLSXRenderer) Render(_ context.Context, record *domain.InvoiceRecord) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Invoice"
	f.SetSheetName(f.GetSheetName(0), summary)

	rows := summaryRows(record)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, "", fmt.Errorf("failed to build summary sheet: %w", err)
		}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, "", fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if len(record.LineItems) > 0 {
		const items = "Line Items"
		if _, err := f.NewSheet(items); err != nil {
			return nil, "", fmt.Errorf("failed to create line items sheet: %w", err)
		}
		header := []any{"Description", "Quantity", "Unit Price", "Amount"}
		if err := f.SetSheetRow(items, "A1", &header); err != nil {
			return nil, "", fmt.Errorf("failed to write line items header: %w", err)
		}
		for i, li := range record.LineItems {
			row := []any{li.Description, li.Quantity.String(), li.UnitPrice.String(), li.Amount.String()}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return nil, "", fmt.Errorf("failed to build line items sheet: %w", err)
			}
			if err := f.SetSheetRow(items, cell, &row); err != nil {
				return nil, "", fmt.Errorf("failed to write line item row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), xlsxContentType, nil
}

func summaryRows(record *domain.InvoiceRecord) [][]any {
	rows := [][]any{
		{"Invoice ID", record.InvoiceID},
		{"Status", string(record.Status)},
		{"File Name", record.FileName},
	}
	if record.InvoiceNumber != nil {
		rows = append(rows, []any{"Invoice Number", *record.InvoiceNumber})
	}
	if record.InvoiceDate != nil {
		rows = append(rows, []any{"Invoice Date", record.InvoiceDate.Format("2006-01-02")})
	}
	if record.CompanyName != nil {
		rows = append(rows, []any{"Company", *record.CompanyName})
	}
	if record.TotalAmount != nil {
		rows = append(rows, []any{"Total Amount", record.TotalAmount.String()})
	}
	if record.CurrencyCode != "" {
		rows = append(rows, []any{"Currency", record.CurrencyCode})
	}
	if record.Vendor != "" {
		rows = append(rows, []any{"Vendor", record.Vendor})
	}
	if record.Sector != "" {
		rows = append(rows, []any{"Sector", record.Sector})
	}
	if record.Contact != "" {
		rows = append(rows, []any{"Contact", record.Contact})
	}
	if len(record.Tags) > 0 {
		rows = append(rows, []any{"Tags", strings.Join(record.Tags, ", ")})
	}
	if record.Notes != "" {
		rows = append(rows, []any{"Notes", record.Notes})
	}
	if record.Confidence != nil {
		rows = append(rows, []any{"Confidence", record.Confidence.Overall})
	}
	if record.IsDuplicate {
		rows = append(rows, []any{"Duplicate Of", record.DuplicateOf})
	}
	return rows
}
