package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/pkg/errorutil"
)

func TestIngestReopensWaitingTicket(t *testing.T) {
	e := newEnv()
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000123", OrgID: "org-a", Status: domain.TicketStatusWaitingOnCustomer})

	result, err := e.replies.Ingest(context.Background(), ticket, &domain.InboundEmail{
		From:      "Jane <jane@x.com>",
		Subject:   "Re: [SUP-2024-000123] Printer",
		TextBody:  "Still broken",
		MessageID: "<r1@x.com>",
		InReplyTo: "<confirm@support.example.com>",
	})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, domain.TicketStatusOpen, result.Status)
	assert.Equal(t, "Still broken", result.Comment.Content)
	assert.False(t, result.Comment.IsInternal)
	assert.Nil(t, result.Comment.UserID)
	assert.Equal(t, "jane@x.com", *result.Comment.AuthorEmail)
	assert.Equal(t, "<r1@x.com>", *result.Comment.MessageID)

	stored, err := e.dir.Tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Equal(t, []events.EventType{events.EventTicketReplyReceived}, e.dispatcher.types())
}

func TestIngestLeavesOtherStatusesButTouchesUpdatedAt(t *testing.T) {
	e := newEnv()
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000124", OrgID: "org-a", Status: domain.TicketStatusInProgress})

	result, err := e.replies.Ingest(context.Background(), ticket, &domain.InboundEmail{
		From:     "jane@x.com",
		Subject:  "Re: x",
		HTMLBody: "<p>see &amp; attached</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, result.Status)
	assert.Equal(t, "see & attached", result.Comment.Content)

	stored, err := e.dir.Tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow, stored.UpdatedAt)
	assert.Nil(t, stored.FirstResponseAt)
}

func TestIngestSynthesizesMessageID(t *testing.T) {
	e := newEnv()
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000125", OrgID: "org-a", Status: domain.TicketStatusOpen})
	email := &domain.InboundEmail{From: "jane@x.com", Subject: "Re: x", TextBody: "one"}

	first, err := e.replies.Ingest(context.Background(), ticket, email)
	require.NoError(t, err)
	second, err := e.replies.Ingest(context.Background(), ticket, email)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^<` + regexp.QuoteMeta(ticket.ID) + `-new-[0-9a-f]{8}@support\.example\.com>$`)
	assert.Regexp(t, pattern, *first.Comment.MessageID)
	assert.NotEqual(t, *first.Comment.MessageID, *second.Comment.MessageID)
	assert.False(t, second.Duplicate, "synthesized ids are never deduplicated")
	assert.Len(t, e.dir.Comments.All(), 2)
}

func TestIngestRedeliveryIsIdempotent(t *testing.T) {
	e := newEnv()
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000126", OrgID: "org-a", Status: domain.TicketStatusOpen})
	email := &domain.InboundEmail{
		From:        "jane@x.com",
		Subject:     "Re: x",
		TextBody:    "hello",
		MessageID:   "<dup@x.com>",
		Attachments: []domain.InboundAttachment{{FileName: "a.txt", ContentType: "text/plain", Content: []byte("a")}},
	}

	first, err := e.replies.Ingest(context.Background(), ticket, email)
	require.NoError(t, err)
	again, err := e.replies.Ingest(context.Background(), ticket, email)
	require.NoError(t, err)

	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Comment.ID, again.Comment.ID)
	assert.Len(t, e.dir.Comments.All(), 1)
	assert.Len(t, e.dir.Attachments.All(), 1)
	assert.Len(t, e.dispatcher.types(), 1)
}

func TestIngestResolvesMemberOnlyWithinTicketOrg(t *testing.T) {
	e := newEnv()
	member := e.dir.Users.Put(domain.User{OrgID: "org-a", Email: "jane@x.com"})
	e.dir.Users.Put(domain.User{OrgID: "org-b", Email: "bob@y.com"})
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000127", OrgID: "org-a", Status: domain.TicketStatusOpen})

	own, err := e.replies.Ingest(context.Background(), ticket, &domain.InboundEmail{From: "JANE@x.com", Subject: "Re", TextBody: "a"})
	require.NoError(t, err)
	require.NotNil(t, own.Comment.UserID)
	assert.Equal(t, member.ID, *own.Comment.UserID)

	foreign, err := e.replies.Ingest(context.Background(), ticket, &domain.InboundEmail{From: "bob@y.com", Subject: "Re", TextBody: "b"})
	require.NoError(t, err)
	assert.Nil(t, foreign.Comment.UserID)
	assert.Equal(t, "bob@y.com", *foreign.Comment.AuthorEmail)
}

func TestIngestStoresAttachments(t *testing.T) {
	e := newEnv()
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000128", OrgID: "org-a", Status: domain.TicketStatusOpen})
	big := make([]byte, (1<<20)+1)

	result, err := e.replies.Ingest(context.Background(), ticket, &domain.InboundEmail{
		From:     "jane@x.com",
		Subject:  "Re",
		TextBody: "logs",
		Attachments: []domain.InboundAttachment{
			{FileName: "log.txt", ContentType: "text/plain", Content: []byte("trace")},
			{FileName: "huge.bin", ContentType: "application/octet-stream", Content: big},
		},
	})
	require.NoError(t, err)

	stored := e.dir.Attachments.All()
	require.Len(t, stored, 1)
	assert.Equal(t, ticket.ID, stored[0].TicketID)
	assert.Equal(t, result.Comment.ID, *stored[0].CommentID)
	assert.Equal(t, int64(5), stored[0].SizeBytes)
}

func TestIngestNotificationFailureIsSwallowed(t *testing.T) {
	e := newEnv()
	e.dispatcher.err = errors.New("redis down")
	ticket := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000129", OrgID: "org-a", Status: domain.TicketStatusOpen})

	_, err := e.replies.Ingest(context.Background(), ticket, &domain.InboundEmail{From: "jane@x.com", Subject: "Re", TextBody: "x"})
	assert.NoError(t, err)
}

func TestIngestScopesTransitionToTicketOrg(t *testing.T) {
	e := newEnv()
	stored := e.dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000130", OrgID: "org-a", Status: domain.TicketStatusWaitingOnCustomer})
	forged := *stored
	forged.OrgID = "org-b"

	_, err := e.replies.Ingest(context.Background(), &forged, &domain.InboundEmail{From: "jane@x.com", Subject: "Re", TextBody: "x"})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))

	unchanged, err := e.dir.Tickets.GetByID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusWaitingOnCustomer, unchanged.Status)
	assert.Empty(t, e.dir.Comments.All())
}
