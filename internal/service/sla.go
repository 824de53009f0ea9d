package service

import "github.com/spec-kit/ticket-intake/internal/domain"

// SLATargets are the hours snapshotted onto a ticket at creation.
type SLATargets struct {
	ResponseHours   int
	ResolutionHours int
}

// DefaultSLATargets apply when an organization does not override a priority.
var DefaultSLATargets = map[domain.TicketPriority]SLATargets{
	domain.TicketPriorityP1: {ResponseHours: 1, ResolutionHours: 4},
	domain.TicketPriorityP2: {ResponseHours: 4, ResolutionHours: 24},
	domain.TicketPriorityP3: {ResponseHours: 8, ResolutionHours: 72},
	domain.TicketPriorityP4: {ResponseHours: 24, ResolutionHours: 168},
}

// ResolveSLATargets overlays the organization policy for priority on the
// defaults. Unknown priorities use the P3 targets.
func ResolveSLATargets(policy domain.SLAPolicy, priority domain.TicketPriority) SLATargets {
	targets, ok := DefaultSLATargets[priority]
	if !ok {
		targets = DefaultSLATargets[domain.TicketPriorityP3]
	}
	override, ok := policy[priority]
	if !ok {
		return targets
	}
	if override.ResponseHours != nil && *override.ResponseHours > 0 {
		targets.ResponseHours = *override.ResponseHours
	}
	if override.ResolutionHours != nil && *override.ResolutionHours > 0 {
		targets.ResolutionHours = *override.ResolutionHours
	}
	return targets
}
