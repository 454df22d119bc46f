package services

import (
	"context"
	"log/slog"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	"github.com/SscSPs/invoice_processing_app/internal/core/domain"
	"github.com/SscSPs/invoice_processing_app/internal/middleware"
)

// BaseService provides common functionality for all services.
type BaseService struct{}

// GetLogger gets the logger from context or returns a default one.
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting.
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting.
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting.
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}

// RequireOwner checks that the acting user owns the record.
func (s *BaseService) RequireOwner(record *domain.InvoiceRecord, userID string) error {
	if record.OwnerID != userID {
		return apperrors.ErrForbidden
	}
	return nil
}
