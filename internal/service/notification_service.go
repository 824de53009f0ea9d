package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/events"
)

// Publisher delivers a serialized event to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService forwards intake events to the staff notification
// channel. Delivery to staff is owned by the channel's subscribers.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	channel    string
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, channel string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		channel:    channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.forward)
	n.dispatcher.Subscribe(events.EventTicketReplyReceived, n.forward)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	if n.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if err := n.publisher.Publish(ctx, n.channel, payload); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	n.logger.Debug("staff notification published",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}
