package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/service"
)

type countingPublisher struct{ calls int }

func (p *countingPublisher) Publish(context.Context, string, []byte) error {
	p.calls++
	return nil
}

func TestStartNotificationWorkerSubscribes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	publisher := &countingPublisher{}
	StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, "staff", nil), zap.NewNop())

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	assert.Equal(t, 1, publisher.calls)
}

func TestStartNotificationWorkerNil(t *testing.T) {
	assert.NotPanics(t, func() { StartNotificationWorker(nil, zap.NewNop()) })
}
