// Package transport defines the HTTP request and response shapes for the
// leads API.
package transport

import (
	"time"

	"sales_portal_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	CompanyName     string   `json:"companyName" validate:"required"`
	ContactName     *string  `json:"contactName"`
	ContactEmail    *string  `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone    *string  `json:"contactPhone"`
	Source          *string  `json:"source"`
	EstimatedBudget *float64 `json:"estimatedBudget" validate:"omitempty,gte=0"`
	Priority        string   `json:"priority" validate:"omitempty,oneof=BASSE NORMALE HAUTE URGENTE"`
	Notes           *string  `json:"notes"`
	AssignedTo      *string  `json:"assignedTo" validate:"omitempty,uuid"`
}

// UpdateLeadRequest uses pointers throughout: absent fields are untouched,
// null clears nullable fields.
type UpdateLeadRequest struct {
	CompanyName     *string  `json:"companyName"`
	ContactName     *string  `json:"contactName"`
	ContactEmail    *string  `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone    *string  `json:"contactPhone"`
	Source          *string  `json:"source"`
	EstimatedBudget *float64 `json:"estimatedBudget" validate:"omitempty,gte=0"`
	Priority        *string  `json:"priority" validate:"omitempty,oneof=BASSE NORMALE HAUTE URGENTE"`
	Notes           *string  `json:"notes"`
	AssignedTo      *string  `json:"assignedTo" validate:"omitempty,uuid"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	CompanyName     string     `json:"companyName"`
	ContactName     *string    `json:"contactName,omitempty"`
	ContactEmail    *string    `json:"contactEmail,omitempty"`
	ContactPhone    *string    `json:"contactPhone,omitempty"`
	Source          *string    `json:"source,omitempty"`
	EstimatedBudget *float64   `json:"estimatedBudget,omitempty"`
	Priority        string     `json:"priority"`
	Status          string     `json:"status"`
	AssignedTo      *uuid.UUID `json:"assignedTo,omitempty"`
	Score           *int       `json:"score,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	LastContactAt   *time.Time `json:"lastContactAt,omitempty"`
	NextActionAt    *time.Time `json:"nextActionAt,omitempty"`
	StatusChangedAt time.Time  `json:"statusChangedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func FromLead(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:              lead.ID,
		CompanyName:     lead.CompanyName,
		ContactName:     lead.ContactName,
		ContactEmail:    lead.ContactEmail,
		ContactPhone:    lead.ContactPhone,
		Source:          lead.Source,
		EstimatedBudget: lead.EstimatedBudget,
		Priority:        string(lead.Priority),
		Status:          string(lead.Status),
		AssignedTo:      lead.AssignedTo,
		Score:           lead.Score,
		Notes:           lead.Notes,
		LastContactAt:   lead.LastContactAt,
		NextActionAt:    lead.NextActionAt,
		StatusChangedAt: lead.StatusChangedAt,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
}

func FromLeads(leads []repository.Lead) []LeadResponse {
	responses := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		responses = append(responses, FromLead(lead))
	}
	return responses
}

type HistoryEntryResponse struct {
	ID        uuid.UUID  `json:"id"`
	OldStatus *string    `json:"oldStatus,omitempty"`
	NewStatus string     `json:"newStatus"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	Automatic bool       `json:"automatic"`
	ChangedAt time.Time  `json:"changedAt"`
}

func FromHistory(entries []repository.StatusHistoryEntry) []HistoryEntryResponse {
	responses := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		var oldStatus *string
		if entry.OldStatus != nil {
			value := string(*entry.OldStatus)
			oldStatus = &value
		}
		responses = append(responses, HistoryEntryResponse{
			ID:        entry.ID,
			OldStatus: oldStatus,
			NewStatus: string(entry.NewStatus),
			ChangedBy: entry.ChangedBy,
			Automatic: entry.Automatic,
			ChangedAt: entry.ChangedAt,
		})
	}
	return responses
}
