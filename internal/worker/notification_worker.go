package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/service"
)

// StartNotificationWorker subscribes the staff notification forwarder to the
// intake events. It must run before the HTTP server accepts traffic so no
// event is published without a subscriber.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		if logger != nil {
			logger.Warn("notification forwarding disabled")
		}
		return
	}
	notifications.RegisterHandlers()
}
