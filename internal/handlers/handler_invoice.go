package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/services"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
	"github.com/SscSPs/invoice_processing_app/internal/middleware"
)

// invoiceHandler handles HTTP requests for invoice records.
type invoiceHandler struct {
	invoiceService *services.InvoiceService
}

func newInvoiceHandler(is *services.InvoiceService) *invoiceHandler {
	return &invoiceHandler{invoiceService: is}
}

// registerInvoiceRoutes registers record access and reviewer routes.
func registerInvoiceRoutes(rg *gin.RouterGroup, invoiceService *services.InvoiceService) {
	h := newInvoiceHandler(invoiceService)

	invoices := rg.Group("/invoices")
	{
		invoices.GET("", h.listInvoices)
		invoices.GET("/:id", h.getInvoice)
		invoices.POST("/:id/corrections", h.correctInvoice)
		invoices.POST("/:id/approve", h.approveInvoice)
		invoices.POST("/:id/reject", h.rejectInvoice)
		invoices.DELETE("/:id", h.deleteInvoice)
		invoices.GET("/:id/export", h.exportInvoice)
		invoices.POST("/:id/export", h.exportInvoice)
	}
}

func (h *invoiceHandler) listInvoices(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.invoiceService.ListInvoices(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.Error("Failed to list invoices", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invoices"})
		return
	}

	resp := dto.ListInvoicesResponse{Limit: limit, Offset: offset, Invoices: make([]dto.InvoiceResponse, len(records))}
	for i := range records {
		resp.Invoices[i] = dto.ToInvoiceResponse(&records[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *invoiceHandler) getInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	record, err := h.invoiceService.GetInvoice(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondInvoiceError(c, logger, err, "Failed to retrieve invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(record))
}

func (h *invoiceHandler) correctInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.CorrectInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CorrectInvoice", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	record, err := h.invoiceService.Correct(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondInvoiceError(c, logger, err, "Failed to apply corrections")
		return
	}

	logger.Info("Corrections applied",
		slog.String("invoice_id", record.InvoiceID),
		slog.String("status", string(record.Status)))
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(record))
}

func (h *invoiceHandler) approveInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	record, err := h.invoiceService.Approve(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondInvoiceError(c, logger, err, "Failed to approve invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(record))
}

func (h *invoiceHandler) rejectInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req dto.RejectInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}

	record, err := h.invoiceService.Reject(c.Request.Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		respondInvoiceError(c, logger, err, "Failed to reject invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(record))
}

func (h *invoiceHandler) deleteInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.invoiceService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondInvoiceError(c, logger, err, "Failed to delete invoice")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *invoiceHandler) exportInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	content, contentType, fileName, err := h.invoiceService.Export(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondInvoiceError(c, logger, err, "Failed to export invoice")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(fileName))
	c.Data(http.StatusOK, contentType, content)
}

// respondInvoiceError maps service errors onto HTTP statuses consistently
// across the invoice routes.
func respondInvoiceError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		logger.Warn("Invalid transition", slog.String("error", err.Error()))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
