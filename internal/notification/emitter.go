// Package notification owns the alert feed and outbound message plumbing.
// The engine talks to it through the Emitter interface and treats delivery
// as fire-and-forget; retries belong to the outbox dispatcher.
package notification

import (
	"context"

	"github.com/google/uuid"
)

// Category classifies a notification for the dashboard feed and for digest
// grouping.
type Category string

const (
	CategoryLeadAssigned  Category = "lead_assigned"
	CategoryColdDigest    Category = "cold_digest"
	CategoryOverdueDigest Category = "overdue_digest"
	CategoryStaleLead     Category = "stale_lead"
	CategoryEscalation    Category = "escalation"
	CategoryProposal      Category = "proposal_reminder"
	CategoryWeeklyReport  Category = "weekly_report"
)

// Payload is the message content. LeadIDs carries the leads a digest covers.
type Payload struct {
	Title   string      `json:"title"`
	Body    string      `json:"body"`
	LeadID  *uuid.UUID  `json:"leadId,omitempty"`
	LeadIDs []uuid.UUID `json:"leadIds,omitempty"`
	Email   bool        `json:"email"`
}

// Emitter enqueues a notification for a recipient. Implementations decide
// the channels (in-app feed, outbox email); callers never wait on delivery.
type Emitter interface {
	Enqueue(ctx context.Context, recipientID uuid.UUID, category Category, payload Payload) error
}
