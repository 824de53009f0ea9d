package domain

import "time"

// SLAOverride replaces the default targets for one priority. Nil fields fall
// back to the defaults.
type SLAOverride struct {
	ResponseHours   *int `json:"responseHours,omitempty"`
	ResolutionHours *int `json:"resolutionHours,omitempty"`
}

// SLAPolicy maps priorities to per-org overrides.
type SLAPolicy map[TicketPriority]SLAOverride

// Organization is a tenant. Every ticket belongs to exactly one.
type Organization struct {
	ID                string
	Slug              string
	Subdomain         *string
	Name              string
	AllowPublicIntake bool
	SLAPolicy         SLAPolicy
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
