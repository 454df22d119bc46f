package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/invoice_processing_app/internal/core/services"
	"github.com/SscSPs/invoice_processing_app/internal/middleware"
)

// eventsHandler streams lifecycle events over SSE.
type eventsHandler struct {
	broadcaster *services.StatusBroadcaster
}

func newEventsHandler(b *services.StatusBroadcaster) *eventsHandler {
	return &eventsHandler{broadcaster: b}
}

func registerEventRoutes(rg *gin.RouterGroup, broadcaster *services.StatusBroadcaster) {
	h := newEventsHandler(broadcaster)
	rg.GET("/events", h.streamEvents)
}

// streamEvents pushes lifecycle events for either one invoice
// (?invoiceID=) or everything the caller owns. The stream delivers events
// emitted while connected; reconnecting clients reconcile via the job and
// invoice endpoints.
func (h *eventsHandler) streamEvents(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	subject := services.SubjectOwner(userID)
	if invoiceID := c.Query("invoiceID"); invoiceID != "" {
		subject = invoiceID
	}

	sub := h.broadcaster.Subscribe(subject)
	defer sub.Cancel()

	logger.Info("Event stream opened", slog.String("subject", subject))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, open := <-sub.Events:
			if !open {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})

	logger.Info("Event stream closed", slog.String("subject", subject))
}
