// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"sales_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the pipeline.
type LeadCreated struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	CompanyName string     `json:"companyName"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	Score       *int       `json:"score,omitempty"`
	Status      string     `json:"status"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadAssigned is published whenever a lead's assignee changes, whether by
// round-robin at creation or by escalation reassignment.
type LeadAssigned struct {
	BaseEvent
	LeadID           uuid.UUID  `json:"leadId"`
	CompanyName      string     `json:"companyName"`
	PreviousAssignee *uuid.UUID `json:"previousAssignee,omitempty"`
	NewAssignee      uuid.UUID  `json:"newAssignee"`
	Reason           string     `json:"reason"` // "round-robin" or "escalation-reassign"
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadStatusChanged is published on every accepted transition that changed
// the status value.
type LeadStatusChanged struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	CompanyName string     `json:"companyName"`
	OldStatus   string     `json:"oldStatus"`
	NewStatus   string     `json:"newStatus"`
	Automatic   bool       `json:"automatic"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }
