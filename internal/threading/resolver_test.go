package threading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/testutil"
)

func strPtr(s string) *string { return &s }

type fixture struct {
	dir      *testutil.Directory
	resolver *Resolver
	keyed    *domain.Ticket
	threaded *domain.Ticket
	other    *domain.Ticket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := testutil.NewDirectory()
	f := &fixture{dir: dir}
	f.keyed = dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000123", OrgID: "org-a", Status: domain.TicketStatusOpen})
	f.threaded = dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000200", OrgID: "org-a", Status: domain.TicketStatusOpen})
	f.other = dir.Tickets.Put(domain.Ticket{Key: "SUP-000300", OrgID: "org-a", Status: domain.TicketStatusOpen})

	dir.Comments.Put(domain.TicketComment{TicketID: f.threaded.ID, MessageID: strPtr("<thread@x.com>")})
	dir.Comments.Put(domain.TicketComment{TicketID: f.other.ID, MessageID: strPtr("<other@x.com>")})

	f.resolver = NewResolver(dir.Tickets, dir.Comments, nil)
	return f
}

func TestSubjectKeyWinsOverHeaders(t *testing.T) {
	f := newFixture(t)
	subjects := []string{
		"[SUP-2024-000123] Printer",
		"Re: [SUP-2024-000123] Printer",
		"Re: Fwd: RE: [sup-2024-000123] Printer",
		"Printer still broken [SUP-2024-000123]",
	}
	for _, subject := range subjects {
		t.Run(subject, func(t *testing.T) {
			match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
				From:       "Jane <jane@x.com>",
				Subject:    subject,
				InReplyTo:  "<thread@x.com>",
				References: "<other@x.com>",
			})
			require.NoError(t, err)
			require.NotNil(t, match)
			assert.Equal(t, f.keyed.ID, match.Ticket.ID)
			assert.Equal(t, StrategySubjectKey, match.Strategy)
		})
	}
}

func TestShortKeyForm(t *testing.T) {
	f := newFixture(t)
	match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{Subject: "Re: [SUP-000300] VPN"})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, f.other.ID, match.Ticket.ID)
}

func TestMalformedKeyFallsThroughToHeaders(t *testing.T) {
	f := newFixture(t)
	for _, subject := range []string{"Re: [SUP-2024-12] x", "Re: SUP-2024-000123 x", "Re: [SUP-2024-999999] unknown", ""} {
		match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
			Subject:   subject,
			InReplyTo: "<thread@x.com>",
		})
		require.NoError(t, err)
		require.NotNil(t, match, subject)
		assert.Equal(t, f.threaded.ID, match.Ticket.ID)
		assert.Equal(t, StrategyInReplyTo, match.Strategy)
	}
}

func TestReferencesLeftmostKnownIDWins(t *testing.T) {
	f := newFixture(t)
	match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
		Subject:    "No brackets",
		References: "<unknown@x.com> <other@x.com> <thread@x.com>",
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, f.other.ID, match.Ticket.ID)
	assert.Equal(t, StrategyReferences, match.Strategy)
}

func TestOwnMessageIDMatchesForwardedMail(t *testing.T) {
	f := newFixture(t)
	match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
		Subject:   "Fwd: something",
		MessageID: "<thread@x.com>",
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, StrategyMessageID, match.Strategy)
}

func TestOutboundMessageIDThreads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Outbox.Enqueue(context.Background(), &domain.OutboundEmail{
		OrgID:     "org-a",
		TicketID:  &f.other.ID,
		MessageID: "<confirm@support.example.com>",
	}))
	match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
		Subject:   "Thanks",
		InReplyTo: "<confirm@support.example.com>",
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, f.other.ID, match.Ticket.ID)
}

func TestNoMatch(t *testing.T) {
	f := newFixture(t)
	match, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
		From:    "Jane <jane@x.com>",
		Subject: "No brackets",
	})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestDeletedTicketsNeverMatch(t *testing.T) {
	dir := testutil.NewDirectory()
	deleted := time.Now()
	ticket := dir.Tickets.Put(domain.Ticket{Key: "SUP-2024-000777", DeletedAt: &deleted})
	dir.Comments.Put(domain.TicketComment{TicketID: ticket.ID, MessageID: strPtr("<gone@x.com>")})
	resolver := NewResolver(dir.Tickets, dir.Comments, nil)

	match, err := resolver.Match(context.Background(), &domain.InboundEmail{
		Subject:   "Re: [SUP-2024-000777]",
		InReplyTo: "<gone@x.com>",
	})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestStoreErrorAbortsMatch(t *testing.T) {
	f := newFixture(t)
	f.dir.Comments.Err = errors.New("connection reset")
	_, err := f.resolver.Match(context.Background(), &domain.InboundEmail{
		Subject:   "No brackets",
		InReplyTo: "<thread@x.com>",
	})
	assert.Error(t, err)
}

func TestSubjectKeys(t *testing.T) {
	assert.Equal(t, []string{"SUP-2024-000123", "IT-000001"}, SubjectKeys("[sup-2024-000123] and [IT-000001]"))
	assert.Nil(t, SubjectKeys("[SUP-2024-0001] [123-000001]"))
	assert.Equal(t, []string{"SUP-2026-1000000"}, SubjectKeys("Re: [SUP-2026-1000000] printer"))
}
