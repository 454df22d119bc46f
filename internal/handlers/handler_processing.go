package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/services"
	"github.com/SscSPs/invoice_processing_app/internal/dto"
	"github.com/SscSPs/invoice_processing_app/internal/middleware"
)

// maxUploadBytes caps a single uploaded document.
const maxUploadBytes = 32 << 20

// processingHandler handles document submission and job status routes.
type processingHandler struct {
	orchestrator *services.ProcessingOrchestrator
	broadcaster  *services.StatusBroadcaster
	syncWait     time.Duration
}

func newProcessingHandler(o *services.ProcessingOrchestrator, b *services.StatusBroadcaster, syncWait time.Duration) *processingHandler {
	return &processingHandler{orchestrator: o, broadcaster: b, syncWait: syncWait}
}

// registerProcessingRoutes registers submission and job polling routes.
// rateLimit guards the upload endpoints only.
func registerProcessingRoutes(rg *gin.RouterGroup, o *services.ProcessingOrchestrator, b *services.StatusBroadcaster, syncWait time.Duration, rateLimit gin.HandlerFunc) {
	h := newProcessingHandler(o, b, syncWait)

	invoices := rg.Group("/invoices")
	{
		if rateLimit != nil {
			invoices.POST("", rateLimit, h.submitInvoice)
			invoices.POST("/batch", rateLimit, h.submitBatch)
		} else {
			invoices.POST("", h.submitInvoice)
			invoices.POST("/batch", h.submitBatch)
		}
		invoices.POST("/:id/retry", h.retryInvoice)
	}

	jobs := rg.Group("/jobs")
	{
		jobs.GET("/:id", h.getJob)
		jobs.POST("/:id/cancel", h.cancelJob)
	}
}

// submitInvoice accepts one multipart document. mode=sync blocks until the
// job is terminal (or the wait window elapses); the default is async.
func (h *processingHandler) submitInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file field: " + err.Error()})
		return
	}
	req, err := buildSubmitRequest(c, fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Info("Received document submission",
		slog.String("file_name", req.FileName),
		slog.Int("size", len(req.Content)))

	if c.Query("mode") == "sync" {
		job, err := h.orchestrator.SubmitAndWait(c.Request.Context(), userID, *req, h.syncWait)
		if err != nil {
			respondSubmitError(c, logger, err)
			return
		}
		status := http.StatusOK
		if !job.Status.IsTerminal() {
			// Still running past the wait window; the handle lets the
			// caller keep polling.
			status = http.StatusAccepted
		}
		c.JSON(status, dto.ToJobResponse(job))
		return
	}

	job, err := h.orchestrator.Submit(c.Request.Context(), userID, *req)
	if err != nil {
		respondSubmitError(c, logger, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ToJobResponse(job))
}

// submitBatch accepts multiple files under the "files" field. Each file is
// an independent submission; per-file outcomes are reported.
func (h *processingHandler) submitBatch(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}

	var reqs []dto.SubmitDocumentRequest
	for _, fh := range files {
		req, err := buildSubmitRequest(c, fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reqs = append(reqs, *req)
	}

	result := h.orchestrator.SubmitBatch(c.Request.Context(), userID, reqs)
	logger.Info("Batch submitted",
		slog.Int("submitted", result.Submitted),
		slog.Int("accepted", result.Accepted),
		slog.Int("rejected", result.Rejected))
	c.JSON(http.StatusAccepted, result)
}

func (h *processingHandler) retryInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	job, err := h.orchestrator.Retry(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		case errors.Is(err, apperrors.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		case errors.Is(err, apperrors.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, apperrors.ErrResourceExhausted):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to retry invoice", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry invoice"})
		}
		return
	}
	c.JSON(http.StatusAccepted, dto.ToJobResponse(job))
}

func (h *processingHandler) getJob(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	job, err := h.broadcaster.Poll(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

func (h *processingHandler) cancelJob(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.orchestrator.CancelJob(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.Status(http.StatusAccepted)
}

func buildSubmitRequest(c *gin.Context, fh *multipart.FileHeader) (*dto.SubmitDocumentRequest, error) {
	if fh.Size > maxUploadBytes {
		return nil, errors.New("file exceeds the upload size limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, errors.New("empty file")
	}

	req := &dto.SubmitDocumentRequest{
		FileName:      fh.Filename,
		ContentType:   fh.Header.Get("Content-Type"),
		Content:       content,
		UseCache:      c.DefaultPostForm("useCache", "true") == "true",
		UseValidation: c.PostForm("useValidation") == "true",
	}
	if raw := c.PostForm("proximity"); raw != "" {
		hint, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("proximity must be an integer")
		}
		req.ProximityHint = &hint
	}
	return req, nil
}

func respondSubmitError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, apperrors.ErrResourceExhausted) {
		logger.Warn("Submission rejected, pool saturated", slog.String("error", err.Error()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}
	logger.Error("Failed to submit document", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit document"})
}
