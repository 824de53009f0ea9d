package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// storeAttachments saves inbound files against the ticket. Oversized and
// failing files are skipped and logged; they never fail the intake.
func storeAttachments(ctx context.Context, repo repository.AttachmentRepository, ticketID string, commentID *string, files []domain.InboundAttachment, maxBytes int64, logger *zap.Logger) int {
	if repo == nil {
		return 0
	}
	stored := 0
	for _, file := range files {
		size := int64(len(file.Content))
		if size == 0 || (maxBytes > 0 && size > maxBytes) {
			logger.Warn("attachment skipped",
				zap.String("ticket_id", ticketID),
				zap.String("file_name", file.FileName),
				zap.Int64("size_bytes", size))
			continue
		}
		attachment := &domain.Attachment{
			TicketID:    ticketID,
			CommentID:   commentID,
			FileName:    file.FileName,
			ContentType: file.ContentType,
			SizeBytes:   size,
			Content:     file.Content,
		}
		if err := repo.Create(ctx, attachment); err != nil {
			logger.Warn("attachment not stored", zap.String("ticket_id", ticketID), zap.Error(err))
			continue
		}
		stored++
	}
	return stored
}
