package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/testutil"
)

var testNow = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

func testIntakeConfig() config.IntakeConfig {
	return config.IntakeConfig{
		BaseURL:            "https://help.example.com",
		KeyPrefix:          "SUP",
		UnassignedOrgSlug:  "unassigned-intake",
		MailDomain:         "support.example.com",
		DefaultPriority:    "P3",
		DefaultCategory:    "general",
		MaxAttachmentBytes: 1 << 20,
	}
}

func testAbuseConfig() config.AbuseConfig {
	return config.AbuseConfig{
		WindowMinutes:   60,
		FreeAttempts:    3,
		DelayStepMillis: 500,
		MaxDelayMillis:  5000,
		MaxLinks:        3,
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	dir        *testutil.Directory
	counters   *testutil.Counters
	sleeper    *sleepRecorder
	dispatcher *recordingDispatcher
	clock      time.Time
	tokens     *TokenService
	guard      *AbuseGuard
	limiter    *RateLimiter
	intake     *IntakeService
	replies    *ReplyIngestor
	portal     *PortalService
}

func newEnv() *env {
	e := &env{
		dir:        testutil.NewDirectory(),
		counters:   testutil.NewCounters(),
		sleeper:    &sleepRecorder{},
		dispatcher: &recordingDispatcher{},
		clock:      testNow,
	}
	now := func() time.Time { return e.clock }
	e.dir.Now = now

	e.tokens = NewTokenService(TokenDependencies{
		TokenRepo:  e.dir.Tokens,
		TicketRepo: e.dir.Tickets,
		OutboxRepo: e.dir.Outbox,
		Config:     config.TokenConfig{HashKey: "test-pepper", ViewTTLHours: 168, ResendIntervalMinutes: 5},
		Intake:     testIntakeConfig(),
		Now:        now,
	})
	e.guard = NewAbuseGuard(AbuseGuardDependencies{
		Store:  e.counters,
		Config: testAbuseConfig(),
		Sleep:  e.sleeper.sleep,
	})
	e.limiter = NewRateLimiter(e.counters, config.RateLimitConfig{WindowMinutes: 60, PerIPLimit: 20, PerEmailLimit: 10}, nil)
	e.intake = NewIntakeService(IntakeDependencies{
		TicketRepo:       e.dir.Tickets,
		OrganizationRepo: e.dir.Organizations,
		UserRepo:         e.dir.Users,
		AttachmentRepo:   e.dir.Attachments,
		OutboxRepo:       e.dir.Outbox,
		RateLimiter:      e.limiter,
		AbuseGuard:       e.guard,
		TokenService:     e.tokens,
		Dispatcher:       e.dispatcher,
		Config:           testIntakeConfig(),
		Now:              now,
	})
	e.replies = NewReplyIngestor(ReplyDependencies{
		TicketRepo:     e.dir.Tickets,
		CommentRepo:    e.dir.Comments,
		UserRepo:       e.dir.Users,
		AttachmentRepo: e.dir.Attachments,
		Dispatcher:     e.dispatcher,
		Config:         testIntakeConfig(),
	})
	e.portal = NewPortalService(PortalDependencies{
		TicketRepo:     e.dir.Tickets,
		CommentRepo:    e.dir.Comments,
		AttachmentRepo: e.dir.Attachments,
	})
	return e
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
