package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

func TestResolveSLATargets(t *testing.T) {
	policy := domain.SLAPolicy{
		domain.TicketPriorityP1: {ResponseHours: intPtr(2)},
		domain.TicketPriorityP4: {ResponseHours: intPtr(0), ResolutionHours: intPtr(240)},
	}

	tests := []struct {
		name     string
		policy   domain.SLAPolicy
		priority domain.TicketPriority
		want     SLATargets
	}{
		{name: "defaults", policy: nil, priority: domain.TicketPriorityP2, want: SLATargets{4, 24}},
		{name: "partial override", policy: policy, priority: domain.TicketPriorityP1, want: SLATargets{2, 4}},
		{name: "non-positive ignored", policy: policy, priority: domain.TicketPriorityP4, want: SLATargets{24, 240}},
		{name: "no override for priority", policy: policy, priority: domain.TicketPriorityP3, want: SLATargets{8, 72}},
		{name: "unknown priority", policy: nil, priority: "P9", want: SLATargets{8, 72}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSLATargets(tt.policy, tt.priority))
		})
	}
}
