package export_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/export"
)

func strPtr(v string) *string { return &v }

func TestXLSXRenderer_RenderFullRecord(t *testing.T) {
	amount := decimal.RequireFromString("1250.50")
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	record := &domain.InvoiceRecord{
		InvoiceID:     "inv-1",
		Status:        domain.StatusValidated,
		FileName:      "may.pdf",
		InvoiceNumber: strPtr("INV-2024-001"),
		InvoiceDate:   &date,
		CompanyName:   strPtr("Acme Corp"),
		TotalAmount:   &amount,
		CurrencyCode:  "USD",
		Vendor:        "Acme Supplies",
		Tags:          []string{"utilities", "recurring"},
		LineItems: []domain.LineItem{
			{Description: "Widgets", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("100.00"), Amount: decimal.RequireFromString("1000.00")},
			{Description: "Shipping", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("250.50"), Amount: decimal.RequireFromString("250.50")},
		},
	}

	renderer := export.NewXLSXRenderer()
	content, contentType, err := renderer.Render(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", contentType)
	assert.Equal(t, "xlsx", renderer.Format())

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Invoice", "Line Items"}, f.GetSheetList())

	rows, err := f.GetRows("Invoice")
	require.NoError(t, err)
	byLabel := map[string]string{}
	for _, row := range rows {
		if len(row) >= 2 {
			byLabel[row[0]] = row[1]
		}
	}
	assert.Equal(t, "inv-1", byLabel["Invoice ID"])
	assert.Equal(t, "VALIDATED", byLabel["Status"])
	assert.Equal(t, "INV-2024-001", byLabel["Invoice Number"])
	assert.Equal(t, "2024-05-10", byLabel["Invoice Date"])
	assert.Equal(t, "Acme Corp", byLabel["Company"])
	assert.Equal(t, "1250.5", byLabel["Total Amount"])
	assert.Equal(t, "utilities, recurring", byLabel["Tags"])

	items, err := f.GetRows("Line Items")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Description", "Quantity", "Unit Price", "Amount"}, items[0])
	assert.Equal(t, "Widgets", items[1][0])
	assert.Equal(t, "250.5", items[2][3])
}

func TestXLSXRenderer_SparseRecordSkipsAbsentFields(t *testing.T) {
	record := &domain.InvoiceRecord{
		InvoiceID: "inv-2",
		Status:    domain.StatusFailed,
		FileName:  "broken.pdf",
	}

	content, _, err := export.NewXLSXRenderer().Render(context.Background(), record)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	// No line items, no second sheet.
	assert.Equal(t, []string{"Invoice"}, f.GetSheetList())

	rows, err := f.GetRows("Invoice")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.NotEqual(t, "Invoice Number", row[0])
	}
}
