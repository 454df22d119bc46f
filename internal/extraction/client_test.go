package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEngineURL = "http://ocr-engine.local"

func newTestClient(t *testing.T, cacheTTL time.Duration) *Client {
	t.Helper()
	c := NewClient(testEngineURL, 30*time.Second, cacheTTL, nil)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func successBody() map[string]any {
	return map[string]any{
		"success":       true,
		"processing_id": "proc-123",
		"invoice_data": map[string]any{
			"invoice_number": "INV-1001",
			"invoice_date":   "2024-01-01",
			"company_name":   "Acme Corp",
			"total_amount":   map[string]any{"value": "100.00", "currency": "USD"},
			"contact":        "billing@acme.example",
		},
		"raw_text":        "INV-1001 Acme Corp 100.00",
		"complete_text":   "INV-1001 Acme Corp 100.00 USD",
		"processing_time": 1.25,
		"metadata":        map[string]any{"num_boxes_detected": 42},
	}
}

func TestExtract_Success(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, successBody()))

	doc := Document{FileName: "invoice.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}
	res, err := c.Extract(context.Background(), doc, Options{UseValidation: true})

	require.NoError(t, err)
	assert.Equal(t, "proc-123", res.ProcessingID)
	require.NotNil(t, res.Fields.InvoiceNumber)
	assert.Equal(t, "INV-1001", *res.Fields.InvoiceNumber)
	require.NotNil(t, res.Fields.InvoiceDate)
	assert.Equal(t, 2024, res.Fields.InvoiceDate.Year())
	require.NotNil(t, res.Fields.TotalAmount)
	assert.Equal(t, "100", res.Fields.TotalAmount.String())
	assert.Equal(t, "USD", res.Fields.CurrencyCode)
	assert.Equal(t, 1250*time.Millisecond, res.ProcessingTime)
	assert.False(t, res.CacheHit)
}

func TestExtract_AlternateDateFormats(t *testing.T) {
	c := newTestClient(t, 0)
	body := successBody()
	body["invoice_data"].(map[string]any)["invoice_date"] = "31/12/2023"
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, body))

	res, err := c.Extract(context.Background(), Document{FileName: "a.pdf", Content: []byte("x")}, Options{})

	require.NoError(t, err)
	require.NotNil(t, res.Fields.InvoiceDate)
	assert.Equal(t, time.December, res.Fields.InvoiceDate.Month())
	assert.Equal(t, 31, res.Fields.InvoiceDate.Day())
}

func TestExtract_WhitespaceOnlyFieldsAreAbsent(t *testing.T) {
	c := newTestClient(t, 0)
	body := successBody()
	body["invoice_data"].(map[string]any)["invoice_number"] = "   "
	body["invoice_data"].(map[string]any)["company_name"] = "  Acme Corp  "
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, body))

	res, err := c.Extract(context.Background(), Document{FileName: "a.pdf", Content: []byte("x")}, Options{})

	require.NoError(t, err)
	// A blank invoice number must not count as present downstream.
	assert.Nil(t, res.Fields.InvoiceNumber)
	require.NotNil(t, res.Fields.CompanyName)
	assert.Equal(t, "Acme Corp", *res.Fields.CompanyName)
}

func TestExtract_RemoteRejected(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"success": false,
			"error":   "unsupported file format",
		}))

	_, err := c.Extract(context.Background(), Document{FileName: "a.bin", Content: []byte("x")}, Options{})

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, KindRemoteRejected, exErr.Kind)
	assert.Contains(t, exErr.Detail, "unsupported file format")
	assert.False(t, exErr.Retryable())
}

func TestExtract_MalformedResponse(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewStringResponder(200, "<html>gateway error</html>"))

	_, err := c.Extract(context.Background(), Document{FileName: "a.pdf", Content: []byte("x")}, Options{})

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, KindMalformedResponse, exErr.Kind)
	assert.False(t, exErr.Retryable())
}

func TestExtract_MissingProcessingID(t *testing.T) {
	c := newTestClient(t, 0)
	body := successBody()
	delete(body, "processing_id")
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, body))

	_, err := c.Extract(context.Background(), Document{FileName: "a.pdf", Content: []byte("x")}, Options{})

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, KindMalformedResponse, exErr.Kind)
}

func TestExtract_Unreachable(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Extract(context.Background(), Document{FileName: "a.pdf", Content: []byte("x")}, Options{})

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, KindUnreachable, exErr.Kind)
	assert.True(t, exErr.Retryable())
}

func TestExtract_Timeout(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	_, err := c.Extract(context.Background(), Document{FileName: "a.pdf", Content: []byte("x")}, Options{})

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, KindTimeout, exErr.Kind)
	assert.True(t, exErr.Retryable())
}

func TestExtract_CacheShortCircuitsIdenticalContent(t *testing.T) {
	c := newTestClient(t, time.Minute)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, successBody()))

	doc := Document{FileName: "invoice.pdf", Content: []byte("same-bytes")}
	opts := Options{UseCache: true}

	first, err := c.Extract(context.Background(), doc, opts)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := c.Extract(context.Background(), doc, opts)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.ProcessingID, second.ProcessingID)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestExtract_CacheDistinguishesOptions(t *testing.T) {
	c := newTestClient(t, time.Minute)
	httpmock.RegisterResponder("POST", testEngineURL+processPath,
		httpmock.NewJsonResponderOrPanic(200, successBody()))

	doc := Document{FileName: "invoice.pdf", Content: []byte("same-bytes")}

	_, err := c.Extract(context.Background(), doc, Options{UseCache: true})
	require.NoError(t, err)
	_, err = c.Extract(context.Background(), doc, Options{UseCache: true, UseValidation: true})
	require.NoError(t, err)

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}
