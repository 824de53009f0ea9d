package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/testutil"
)

type repos struct {
	pool        *pgxpool.Pool
	orgs        repository.OrganizationRepository
	users       repository.UserRepository
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	tokens      repository.TokenRepository
	outbox      repository.OutboxRepository
}

func TestRepositories(t *testing.T) {
	pool := testutil.NewTestDB(t)
	r := repos{
		pool:        pool,
		orgs:        repository.NewOrganizationRepository(pool),
		users:       repository.NewUserRepository(pool),
		tickets:     repository.NewTicketRepository(pool),
		comments:    repository.NewCommentRepository(pool),
		attachments: repository.NewAttachmentRepository(pool),
		tokens:      repository.NewTokenRepository(pool),
		outbox:      repository.NewOutboxRepository(pool),
	}

	t.Run("organizations", r.testOrganizations)
	t.Run("tickets", r.testTickets)
	t.Run("customer reply is tenant scoped", r.testApplyCustomerReply)
	t.Run("comments dedup on message id", r.testComments)
	t.Run("message ids resolve through comments and outbox", r.testMessageIDLookup)
	t.Run("attachments", r.testAttachments)
	t.Run("tokens consume once", r.testTokens)
}

func (r repos) org(t *testing.T, slug string) *domain.Organization {
	t.Helper()
	org, err := r.orgs.EnsureBySlug(context.Background(), &domain.Organization{
		Slug:              slug,
		Name:              slug,
		AllowPublicIntake: true,
	})
	require.NoError(t, err)
	return org
}

func (r repos) ticket(t *testing.T, org *domain.Organization) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	n, err := r.tickets.NextKeyNumber(ctx)
	require.NoError(t, err)
	email := "jane@x.com"
	ticket := &domain.Ticket{
		Key:                      fmt.Sprintf("SUP-2024-%06d", n),
		OrgID:                    org.ID,
		Subject:                  "Printer",
		Description:              "It jams",
		RequesterEmail:           &email,
		Status:                   domain.TicketStatusNew,
		Priority:                 domain.TicketPriorityP3,
		Category:                 "general",
		Source:                   domain.TicketSourceEmail,
		SLAResponseTargetHours:   8,
		SLAResolutionTargetHours: 72,
	}
	require.NoError(t, r.tickets.Create(ctx, ticket))
	return ticket
}

func (r repos) testOrganizations(t *testing.T) {
	ctx := context.Background()
	subdomain := "acme"
	hours := 2
	created, err := r.orgs.EnsureBySlug(ctx, &domain.Organization{
		Slug:              "acme",
		Subdomain:         &subdomain,
		Name:              "Acme",
		AllowPublicIntake: true,
		SLAPolicy:         domain.SLAPolicy{domain.TicketPriorityP1: {ResponseHours: &hours}},
	})
	require.NoError(t, err)

	again, err := r.orgs.EnsureBySlug(ctx, &domain.Organization{Slug: "acme", Name: "Other", AllowPublicIntake: false})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Acme", again.Name)
	assert.True(t, again.AllowPublicIntake)
	require.NotNil(t, again.SLAPolicy[domain.TicketPriorityP1].ResponseHours)
	assert.Equal(t, 2, *again.SLAPolicy[domain.TicketPriorityP1].ResponseHours)

	bySub, err := r.orgs.GetBySubdomain(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySub.ID)

	_, err = r.pool.Exec(ctx, `INSERT INTO users (org_id, email, name) VALUES ($1, $2, $3)`, created.ID, "Member@Acme.com", "Member")
	require.NoError(t, err)

	byMember, err := r.orgs.FindByMemberEmail(ctx, "member@acme.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byMember.ID)

	user, err := r.users.FindMember(ctx, created.ID, "MEMBER@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Member", user.Name)

	other := r.org(t, "other-org")
	_, err = r.users.FindMember(ctx, other.ID, "member@acme.com")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func (r repos) testTickets(t *testing.T) {
	ctx := context.Background()
	org := r.org(t, "tickets-org")
	first := r.ticket(t, org)
	second := r.ticket(t, org)
	assert.NotEqual(t, first.Key, second.Key)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	byKey, err := r.tickets.GetByKey(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byKey.ID)
	assert.Equal(t, "jane@x.com", *byKey.RequesterEmail)
	assert.Nil(t, byKey.RequesterID)
	assert.Equal(t, 72, byKey.SLAResolutionTargetHours)

	_, err = r.pool.Exec(ctx, `UPDATE tickets SET deleted_at = NOW() WHERE id=$1`, second.ID)
	require.NoError(t, err)
	_, err = r.tickets.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = r.tickets.GetByKey(ctx, second.Key)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func (r repos) testApplyCustomerReply(t *testing.T) {
	ctx := context.Background()
	org := r.org(t, "reply-org")
	ticket := r.ticket(t, org)
	_, err := r.pool.Exec(ctx, `UPDATE tickets SET status=$1, updated_at = NOW() - INTERVAL '1 hour' WHERE id=$2`,
		domain.TicketStatusWaitingOnCustomer, ticket.ID)
	require.NoError(t, err)

	_, err = r.tickets.ApplyCustomerReply(ctx, r.org(t, "someone-else").ID, ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	status, err := r.tickets.ApplyCustomerReply(ctx, org.ID, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, status)

	stored, err := r.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stored.UpdatedAt, time.Minute)

	_, err = r.pool.Exec(ctx, `UPDATE tickets SET status=$1 WHERE id=$2`, domain.TicketStatusInProgress, ticket.ID)
	require.NoError(t, err)
	status, err = r.tickets.ApplyCustomerReply(ctx, org.ID, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, status)
}

func (r repos) testComments(t *testing.T) {
	ctx := context.Background()
	ticket := r.ticket(t, r.org(t, "comments-org"))
	author := "jane@x.com"
	messageID := "<c1@x.com>"

	first := &domain.TicketComment{TicketID: ticket.ID, AuthorEmail: &author, Content: "hello", MessageID: &messageID}
	created, err := r.comments.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &domain.TicketComment{TicketID: ticket.ID, AuthorEmail: &author, Content: "hello again", MessageID: &messageID}
	created, err = r.comments.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := r.comments.GetByMessageID(ctx, ticket.ID, messageID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "hello", stored.Content)

	internal := &domain.TicketComment{TicketID: ticket.ID, Content: "staff only", IsInternal: true}
	_, err = r.comments.Create(ctx, internal)
	require.NoError(t, err)

	public, err := r.comments.ListPublicByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, first.ID, public[0].ID)
}

func (r repos) testMessageIDLookup(t *testing.T) {
	ctx := context.Background()
	org := r.org(t, "lookup-org")
	viaComment := r.ticket(t, org)
	viaOutbox := r.ticket(t, org)
	deleted := r.ticket(t, org)

	commentID := "<lookup-comment@x.com>"
	_, err := r.comments.Create(ctx, &domain.TicketComment{TicketID: viaComment.ID, Content: "c", MessageID: &commentID})
	require.NoError(t, err)

	outboxTicket := viaOutbox.ID
	outboxID := "<lookup-outbox@support.example.com>"
	require.NoError(t, r.outbox.Enqueue(ctx, &domain.OutboundEmail{
		OrgID:     org.ID,
		TicketID:  &outboxTicket,
		ToAddress: "jane@x.com",
		Subject:   "[x] y",
		TextBody:  "body",
		MessageID: outboxID,
		Status:    domain.OutboxStatusPending,
	}))

	deletedID := "<lookup-deleted@x.com>"
	_, err = r.comments.Create(ctx, &domain.TicketComment{TicketID: deleted.ID, Content: "c", MessageID: &deletedID})
	require.NoError(t, err)
	_, err = r.pool.Exec(ctx, `UPDATE tickets SET deleted_at = NOW() WHERE id=$1`, deleted.ID)
	require.NoError(t, err)

	found, err := r.comments.FindTicketIDsByMessageIDs(ctx, []string{commentID, outboxID, deletedID, "<unknown@x.com>"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		commentID: viaComment.ID,
		outboxID:  viaOutbox.ID,
	}, found)
}

func (r repos) testAttachments(t *testing.T) {
	ctx := context.Background()
	org := r.org(t, "attachments-org")
	ticket := r.ticket(t, org)
	other := r.ticket(t, org)

	attachment := &domain.Attachment{
		TicketID:    ticket.ID,
		FileName:    "log.txt",
		ContentType: "text/plain",
		SizeBytes:   5,
		Content:     []byte("hello"),
	}
	require.NoError(t, r.attachments.Create(ctx, attachment))

	got, err := r.attachments.GetForTicket(ctx, ticket.ID, attachment.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Content)

	_, err = r.attachments.GetForTicket(ctx, other.ID, attachment.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	list, err := r.attachments.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "log.txt", list[0].FileName)
	assert.Empty(t, list[0].Content)
}

func (r repos) testTokens(t *testing.T) {
	ctx := context.Background()
	org := r.org(t, "tokens-org")
	ticket := r.ticket(t, org)
	other := r.ticket(t, org)

	token := &domain.TicketToken{
		TicketID:   ticket.ID,
		Email:      "jane@x.com",
		TokenHash:  "hash-1",
		Purpose:    domain.TokenPurposeView,
		ExpiresAt:  time.Now().Add(time.Hour),
		LastSentAt: time.Now(),
	}
	require.NoError(t, r.tokens.Create(ctx, token))

	_, err := r.tokens.Consume(ctx, "hash-1", domain.TokenPurposeView, other.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	found, err := r.tokens.Find(ctx, "hash-1", domain.TokenPurposeView)
	require.NoError(t, err)
	assert.Equal(t, token.ID, found.ID)
	assert.Nil(t, found.ConsumedAt)

	// Concurrent consumers race for one row; exactly one wins.
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.tokens.Consume(ctx, "hash-1", domain.TokenPurposeView, ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	expired := &domain.TicketToken{
		TicketID:   ticket.ID,
		Email:      "jane@x.com",
		TokenHash:  "hash-expired",
		Purpose:    domain.TokenPurposeView,
		ExpiresAt:  time.Now().Add(-time.Minute),
		LastSentAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, r.tokens.Create(ctx, expired))
	_, err = r.tokens.Consume(ctx, "hash-expired", domain.TokenPurposeView, ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	latest, err := r.tokens.LatestForRecipient(ctx, ticket.ID, "JANE@x.com", domain.TokenPurposeView)
	require.NoError(t, err)
	assert.Equal(t, token.ID, latest.ID)
}
