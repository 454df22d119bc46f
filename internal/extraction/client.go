package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// processPath is the engine's document-processing endpoint.
const processPath = "/api/process"

// dateFormats accepted for invoice_date values, most common first.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"01-02-2006",
}

// Client calls the external OCR/extraction engine over HTTP. It performs no
// persistence; it must not mutate any invoice state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *resultCache
	logger     *slog.Logger
}

// NewClient creates an extraction client. timeout is the hard per-call
// ceiling; exceeding it surfaces as a Timeout error, never an indefinite
// hang. cacheTTL bounds how long cached results are reusable; a zero TTL
// disables the local cache entirely.
func NewClient(baseURL string, timeout time.Duration, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var cache *resultCache
	if cacheTTL > 0 {
		cache = newResultCache(cacheTTL)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
	}
}

// Extract sends the document to the engine and returns the structured
// result. With opts.UseCache set, byte-identical content served within the
// cache TTL short-circuits the remote call.
func (c *Client) Extract(ctx context.Context, doc Document, opts Options) (*Result, error) {
	if opts.UseCache && c.cache != nil {
		if cached, ok := c.cache.get(doc.Content, opts); ok {
			c.logger.Debug("extraction cache hit",
				slog.String("file_name", doc.FileName),
				slog.String("processing_id", cached.ProcessingID))
			return cached, nil
		}
	}

	result, err := c.call(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	if opts.UseCache && c.cache != nil {
		c.cache.put(doc.Content, opts, result)
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, doc Document, opts Options) (*Result, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile("file", doc.FileName)
	if err != nil {
		return nil, newError(KindMalformedResponse, "failed to build multipart request", err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, newError(KindMalformedResponse, "failed to write document content", err)
	}
	_ = mw.WriteField("useCache", strconv.FormatBool(opts.UseCache))
	_ = mw.WriteField("useValidation", strconv.FormatBool(opts.UseValidation))
	if opts.ProximityHint != nil {
		_ = mw.WriteField("proximity", strconv.Itoa(*opts.ProximityHint))
	}
	if err := mw.Close(); err != nil {
		return nil, newError(KindMalformedResponse, "failed to finalize multipart request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, body)
	if err != nil {
		return nil, newError(KindUnreachable, "failed to build request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindMalformedResponse, "failed to read engine response", err)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, newError(KindMalformedResponse,
			fmt.Sprintf("engine returned non-JSON response (status %d)", resp.StatusCode), err)
	}

	if !wire.Success {
		detail := wire.Error
		if detail == "" {
			detail = fmt.Sprintf("engine rejected document (status %d)", resp.StatusCode)
		}
		return nil, newError(KindRemoteRejected, detail, nil)
	}

	result, err := wire.toResult()
	if err != nil {
		return nil, newError(KindMalformedResponse, "engine response missing required fields", err)
	}
	if result.ProcessingTime == 0 {
		result.ProcessingTime = time.Since(start)
	}

	c.logger.Debug("extraction completed",
		slog.String("file_name", doc.FileName),
		slog.String("processing_id", result.ProcessingID),
		slog.Duration("processing_time", result.ProcessingTime))
	return result, nil
}

// classifyTransportError maps http.Client failures onto the typed taxonomy.
func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "extraction call exceeded deadline", err)
	}
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return newError(KindTimeout, "extraction call timed out", err)
	}
	return newError(KindUnreachable, "extraction engine unreachable", err)
}

// --- wire format ---

type wireAmount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

type wireLineItem struct {
	Description string      `json:"description"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	Amount      json.Number `json:"amount"`
}

type wireInvoiceData struct {
	InvoiceNumber *string        `json:"invoice_number"`
	InvoiceDate   *string        `json:"invoice_date"`
	CompanyName   *string        `json:"company_name"`
	TotalAmount   *wireAmount    `json:"total_amount"`
	Contact       string         `json:"contact"`
	Notes         string         `json:"notes"`
	Tags          []string       `json:"tags"`
	Sector        string         `json:"sector"`
	Vendor        string         `json:"vendor"`
	LineItems     []wireLineItem `json:"line_items"`
}

type wireResponse struct {
	Success        bool            `json:"success"`
	Error          string          `json:"error"`
	ProcessingID   string          `json:"processing_id"`
	InvoiceData    wireInvoiceData `json:"invoice_data"`
	RawText        string          `json:"raw_text"`
	CompleteText   string          `json:"complete_text"`
	Validation     map[string]bool `json:"validation"`
	ProcessingTime float64         `json:"processing_time"` // seconds
	Metadata       map[string]any  `json:"metadata"`
}

func (w *wireResponse) toResult() (*Result, error) {
	if w.ProcessingID == "" {
		return nil, errors.New("missing processing_id")
	}

	fields := Fields{
		InvoiceNumber: trimmedOrNil(w.InvoiceData.InvoiceNumber),
		CompanyName:   trimmedOrNil(w.InvoiceData.CompanyName),
		Contact:       w.InvoiceData.Contact,
		Notes:         w.InvoiceData.Notes,
		Tags:          w.InvoiceData.Tags,
		Sector:        w.InvoiceData.Sector,
		Vendor:        w.InvoiceData.Vendor,
	}

	if w.InvoiceData.InvoiceDate != nil {
		if t, ok := parseDate(*w.InvoiceData.InvoiceDate); ok {
			fields.InvoiceDate = &t
		}
	}

	if w.InvoiceData.TotalAmount != nil && w.InvoiceData.TotalAmount.Value != "" {
		amount, err := decimal.NewFromString(w.InvoiceData.TotalAmount.Value.String())
		if err != nil {
			return nil, fmt.Errorf("unparseable total_amount %q: %w", w.InvoiceData.TotalAmount.Value, err)
		}
		fields.TotalAmount = &amount
		fields.CurrencyCode = w.InvoiceData.TotalAmount.Currency
	}

	for _, li := range w.InvoiceData.LineItems {
		item := LineItem{Description: li.Description}
		item.Quantity, _ = decimal.NewFromString(li.Quantity.String())
		item.UnitPrice, _ = decimal.NewFromString(li.UnitPrice.String())
		item.Amount, _ = decimal.NewFromString(li.Amount.String())
		fields.LineItems = append(fields.LineItems, item)
	}

	return &Result{
		ProcessingID:   w.ProcessingID,
		Fields:         fields,
		RawText:        w.RawText,
		CompleteText:   w.CompleteText,
		PreValidation:  w.Validation,
		ProcessingTime: time.Duration(w.ProcessingTime * float64(time.Second)),
		Metadata:       w.Metadata,
	}, nil
}

// trimmedOrNil normalizes a textual engine field: surrounding whitespace is
// stripped, and a value that is empty after trimming counts as absent.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
