// Package testutil provides in-memory stand-ins for the Postgres
// repositories and the counter store.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// Directory is an in-memory ticket directory. Every fake shares one lock so
// cross-table lookups behave like a single database.
type Directory struct {
	mu  sync.Mutex
	Now func() time.Time

	Tickets       *Tickets
	Comments      *Comments
	Attachments   *Attachments
	Organizations *Organizations
	Users         *Users
	Tokens        *Tokens
	Outbox        *Outbox
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	d := &Directory{Now: time.Now}
	d.Tickets = &Tickets{d: d, rows: map[string]*domain.Ticket{}}
	d.Comments = &Comments{d: d}
	d.Attachments = &Attachments{d: d}
	d.Organizations = &Organizations{d: d, rows: map[string]*domain.Organization{}}
	d.Users = &Users{d: d}
	d.Tokens = &Tokens{d: d}
	d.Outbox = &Outbox{d: d}
	return d
}

func (d *Directory) liveTicket(id string) (*domain.Ticket, bool) {
	t, ok := d.Tickets.rows[id]
	if !ok || t.DeletedAt != nil {
		return nil, false
	}
	return t, true
}

// Tickets fakes repository.TicketRepository.
type Tickets struct {
	d    *Directory
	rows map[string]*domain.Ticket
	seq  int64
	Err  error
}

var _ repository.TicketRepository = (*Tickets)(nil)

func (r *Tickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := r.d.Now()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	row := *ticket
	r.rows[ticket.ID] = &row
	return nil
}

func (r *Tickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	t, ok := r.d.liveTicket(id)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	row := *t
	return &row, nil
}

func (r *Tickets) GetByKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, t := range r.rows {
		if t.Key == key && t.DeletedAt == nil {
			row := *t
			return &row, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Tickets) NextKeyNumber(context.Context) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	r.seq++
	return r.seq, nil
}

func (r *Tickets) ApplyCustomerReply(_ context.Context, orgID, ticketID string) (domain.TicketStatus, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	t, ok := r.d.liveTicket(ticketID)
	if !ok || t.OrgID != orgID {
		return "", pgx.ErrNoRows
	}
	if t.Status == domain.TicketStatusWaitingOnCustomer {
		t.Status = domain.TicketStatusOpen
	}
	t.UpdatedAt = r.d.Now()
	return t.Status, nil
}

// Put stores ticket as is, for seeding.
func (r *Tickets) Put(ticket domain.Ticket) *domain.Ticket {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	r.rows[ticket.ID] = &ticket
	out := ticket
	return &out
}

// All returns a snapshot of every stored ticket, deleted ones included.
func (r *Tickets) All() []domain.Ticket {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.rows))
	for _, t := range r.rows {
		out = append(out, *t)
	}
	return out
}

// Comments fakes repository.CommentRepository.
type Comments struct {
	d    *Directory
	rows []domain.TicketComment
	Err  error
}

var _ repository.CommentRepository = (*Comments)(nil)

func (r *Comments) Create(_ context.Context, comment *domain.TicketComment) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if comment.MessageID != nil {
		for _, c := range r.rows {
			if c.TicketID == comment.TicketID && c.MessageID != nil && *c.MessageID == *comment.MessageID {
				return false, nil
			}
		}
	}
	comment.ID = uuid.NewString()
	comment.CreatedAt = r.d.Now()
	r.rows = append(r.rows, *comment)
	return true, nil
}

func (r *Comments) GetByMessageID(_ context.Context, ticketID, messageID string) (*domain.TicketComment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, c := range r.rows {
		if c.TicketID == ticketID && c.MessageID != nil && *c.MessageID == messageID {
			out := c
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Comments) FindTicketIDsByMessageIDs(_ context.Context, messageIDs []string) (map[string]string, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := map[string]string{}
	for _, id := range messageIDs {
		for _, c := range r.rows {
			if c.MessageID == nil || *c.MessageID != id {
				continue
			}
			if _, ok := r.d.liveTicket(c.TicketID); ok {
				out[id] = c.TicketID
				break
			}
		}
		if _, found := out[id]; found {
			continue
		}
		for _, o := range r.d.Outbox.rows {
			if o.TicketID == nil || o.MessageID != id {
				continue
			}
			if _, ok := r.d.liveTicket(*o.TicketID); ok {
				out[id] = *o.TicketID
				break
			}
		}
	}
	return out, nil
}

func (r *Comments) ListPublicByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []domain.TicketComment
	for _, c := range r.rows {
		if c.TicketID == ticketID && !c.IsInternal {
			out = append(out, c)
		}
	}
	return out, nil
}

// Put seeds a comment.
func (r *Comments) Put(comment domain.TicketComment) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	r.rows = append(r.rows, comment)
}

// All returns a snapshot of stored comments in insertion order.
func (r *Comments) All() []domain.TicketComment {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return append([]domain.TicketComment(nil), r.rows...)
}

// Attachments fakes repository.AttachmentRepository.
type Attachments struct {
	d    *Directory
	rows []domain.Attachment
	Err  error
}

var _ repository.AttachmentRepository = (*Attachments)(nil)

func (r *Attachments) Create(_ context.Context, attachment *domain.Attachment) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	attachment.ID = uuid.NewString()
	attachment.CreatedAt = r.d.Now()
	r.rows = append(r.rows, *attachment)
	return nil
}

func (r *Attachments) GetForTicket(_ context.Context, ticketID, attachmentID string) (*domain.Attachment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, a := range r.rows {
		if a.ID == attachmentID && a.TicketID == ticketID {
			out := a
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Attachments) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []domain.Attachment
	for _, a := range r.rows {
		if a.TicketID == ticketID {
			a.Content = nil
			out = append(out, a)
		}
	}
	return out, nil
}

// All returns a snapshot of stored attachments.
func (r *Attachments) All() []domain.Attachment {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return append([]domain.Attachment(nil), r.rows...)
}

// Organizations fakes repository.OrganizationRepository.
type Organizations struct {
	d    *Directory
	rows map[string]*domain.Organization
	Err  error
}

var _ repository.OrganizationRepository = (*Organizations)(nil)

func (r *Organizations) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if o, ok := r.rows[id]; ok {
		out := *o
		return &out, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *Organizations) GetBySubdomain(_ context.Context, subdomain string) (*domain.Organization, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, o := range r.rows {
		if o.Subdomain != nil && *o.Subdomain == strings.ToLower(subdomain) {
			out := *o
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Organizations) FindByMemberEmail(_ context.Context, email string) (*domain.Organization, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, u := range r.d.Users.rows {
		if strings.EqualFold(u.Email, email) {
			if o, ok := r.rows[u.OrgID]; ok {
				out := *o
				return &out, nil
			}
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *Organizations) EnsureBySlug(_ context.Context, org *domain.Organization) (*domain.Organization, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, o := range r.rows {
		if o.Slug == org.Slug {
			out := *o
			return &out, nil
		}
	}
	row := *org
	row.ID = uuid.NewString()
	row.CreatedAt = r.d.Now()
	row.UpdatedAt = row.CreatedAt
	r.rows[row.ID] = &row
	out := row
	return &out, nil
}

// Put seeds an organization.
func (r *Organizations) Put(org domain.Organization) *domain.Organization {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	r.rows[org.ID] = &org
	out := org
	return &out
}

// Count returns the number of stored organizations.
func (r *Organizations) Count() int {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return len(r.rows)
}

// Users fakes repository.UserRepository.
type Users struct {
	d    *Directory
	rows []domain.User
	Err  error
}

var _ repository.UserRepository = (*Users)(nil)

func (r *Users) FindMember(_ context.Context, orgID, email string) (*domain.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, u := range r.rows {
		if u.OrgID == orgID && strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// Put seeds a user.
func (r *Users) Put(user domain.User) *domain.User {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.rows = append(r.rows, user)
	out := user
	return &out
}

// Tokens fakes repository.TokenRepository. Consume is atomic under the
// directory lock like the single UPDATE it stands in for.
type Tokens struct {
	d    *Directory
	rows []*domain.TicketToken
	Err  error
}

var _ repository.TokenRepository = (*Tokens)(nil)

func (r *Tokens) Create(_ context.Context, token *domain.TicketToken) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	token.ID = uuid.NewString()
	token.CreatedAt = r.d.Now()
	row := *token
	r.rows = append(r.rows, &row)
	return nil
}

func (r *Tokens) Consume(_ context.Context, tokenHash string, purpose domain.TokenPurpose, ticketID string) (*domain.TicketToken, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	now := r.d.Now()
	for _, t := range r.rows {
		if t.TokenHash != tokenHash || t.Purpose != purpose {
			continue
		}
		if ticketID != "" && t.TicketID != ticketID {
			continue
		}
		if !t.Usable(now) {
			continue
		}
		if _, ok := r.d.liveTicket(t.TicketID); !ok {
			continue
		}
		consumed := now
		t.ConsumedAt = &consumed
		out := *t
		return &out, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *Tokens) Find(_ context.Context, tokenHash string, purpose domain.TokenPurpose) (*domain.TicketToken, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, t := range r.rows {
		if t.TokenHash != tokenHash || t.Purpose != purpose {
			continue
		}
		if _, ok := r.d.liveTicket(t.TicketID); !ok {
			continue
		}
		out := *t
		return &out, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *Tokens) LatestForRecipient(_ context.Context, ticketID, email string, purpose domain.TokenPurpose) (*domain.TicketToken, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var latest *domain.TicketToken
	for _, t := range r.rows {
		if t.TicketID != ticketID || !strings.EqualFold(t.Email, email) || t.Purpose != purpose {
			continue
		}
		if latest == nil || !t.LastSentAt.Before(latest.LastSentAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	out := *latest
	return &out, nil
}

// All returns a snapshot of stored tokens.
func (r *Tokens) All() []domain.TicketToken {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]domain.TicketToken, 0, len(r.rows))
	for _, t := range r.rows {
		out = append(out, *t)
	}
	return out
}

// Outbox fakes repository.OutboxRepository.
type Outbox struct {
	d    *Directory
	rows []domain.OutboundEmail
	Err  error
}

var _ repository.OutboxRepository = (*Outbox)(nil)

func (r *Outbox) Enqueue(_ context.Context, email *domain.OutboundEmail) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if email.Status == "" {
		email.Status = domain.OutboxStatusPending
	}
	email.ID = uuid.NewString()
	email.CreatedAt = r.d.Now()
	r.rows = append(r.rows, *email)
	return nil
}

// All returns a snapshot of queued mail.
func (r *Outbox) All() []domain.OutboundEmail {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return append([]domain.OutboundEmail(nil), r.rows...)
}
