package service

import (
	"context"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/counters"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

// Abuse rejection reasons. The first tripped check in this order is reported.
const (
	AbuseReasonDuplicate = "duplicate"
	AbuseReasonLinks     = "links"
)

// schemeURLPattern matches only the scheme prefix so adjacent links split by
// punctuation each count. A bare www. directly after a scheme belongs to
// that URL.
var (
	schemeURLPattern = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://`)
	bareWWWPattern   = regexp.MustCompile(`(?i)(^|[^/\w.])www\.`)
)

// Verdict is the guard decision.
type Verdict struct {
	Allowed bool
	Reason  string
	Delay   time.Duration
}

// AbuseGuard throttles and filters public submissions. All counter state
// lives in the injected store; store failures never reject a submission.
type AbuseGuard struct {
	store   counters.Store
	cfg     config.AbuseConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	sleep   func(ctx context.Context, d time.Duration)
}

// AbuseGuardDependencies bundles collaborators for the guard.
type AbuseGuardDependencies struct {
	Store   counters.Store
	Config  config.AbuseConfig
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Sleep replaces the friction delay, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration)
}

// NewAbuseGuard constructs the guard.
func NewAbuseGuard(deps AbuseGuardDependencies) *AbuseGuard {
	g := &AbuseGuard{
		store:   deps.Store,
		cfg:     deps.Config,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		sleep:   deps.Sleep,
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.sleep == nil {
		g.sleep = sleepContext
	}
	return g
}

// Evaluate runs every check, waits out the friction delay and reports the
// verdict.
func (g *AbuseGuard) Evaluate(ctx context.Context, ip, email, subject, description string) Verdict {
	email = strings.ToLower(strings.TrimSpace(email))

	delay := g.attemptDelay(ctx, ip, email)
	duplicate := g.isDuplicate(ctx, email, subject, description)
	tooManyLinks := g.cfg.MaxLinks > 0 && CountLinks(description) > g.cfg.MaxLinks

	verdict := Verdict{Allowed: true, Delay: delay}
	switch {
	case duplicate:
		verdict.Allowed, verdict.Reason = false, AbuseReasonDuplicate
	case tooManyLinks:
		verdict.Allowed, verdict.Reason = false, AbuseReasonLinks
	}
	if !verdict.Allowed {
		g.metrics.RecordAbuseRejection(verdict.Reason)
	}

	if delay > 0 {
		g.sleep(ctx, delay)
	}
	return verdict
}

// attemptDelay counts the attempt and returns the linear, capped slowdown
// once the free allowance is used up.
func (g *AbuseGuard) attemptDelay(ctx context.Context, ip, email string) time.Duration {
	n, err := counters.IncrWindow(ctx, g.store, "abuse:attempts:"+ip+":"+email, g.cfg.Window())
	if err != nil {
		g.logger.Warn("abuse attempt counter unavailable", zap.Error(err))
		return 0
	}
	over := n - int64(g.cfg.FreeAttempts)
	if over <= 0 {
		return 0
	}
	delay := time.Duration(over) * time.Duration(g.cfg.DelayStepMillis) * time.Millisecond
	if limit := time.Duration(g.cfg.MaxDelayMillis) * time.Millisecond; limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

// isDuplicate reports a repeat of the same content from the same sender
// within the window and records first occurrences.
func (g *AbuseGuard) isDuplicate(ctx context.Context, email, subject, description string) bool {
	key := "abuse:fingerprint:" + email + ":" + Fingerprint(subject, description)
	seen, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("abuse fingerprint lookup failed", zap.Error(err))
		return false
	}
	if seen != "" {
		return true
	}
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if err := g.store.Set(ctx, key, stamp, g.cfg.Window()); err != nil {
		g.logger.Warn("abuse fingerprint record failed", zap.Error(err))
	}
	return false
}

// Fingerprint hashes the normalized subject and description.
func Fingerprint(subject, description string) string {
	normalized := strings.ToLower(strings.TrimSpace(subject + "\n" + description))
	sum := blake3.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CountLinks counts scheme-prefixed URLs plus bare www. hosts.
func CountLinks(text string) int {
	return len(schemeURLPattern.FindAllStringIndex(text, -1)) + len(bareWWWPattern.FindAllStringIndex(text, -1))
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
