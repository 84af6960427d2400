package repository

import (
	"context"
	"time"

	"sales_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	List(ctx context.Context, params ListParams) ([]Lead, int, error)
	ListOpen(ctx context.Context) ([]Lead, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error)
	CommitTransition(ctx context.Context, id uuid.UUID, expected domain.Status, patch TransitionPatch) (Lead, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, assignedTo *uuid.UUID) (Lead, error)
	TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DuplicateFinder provides the lookups the duplicate detector matches on.
type DuplicateFinder interface {
	FindByEmail(ctx context.Context, email string, excludeID *uuid.UUID) ([]Lead, error)
	FindByCompany(ctx context.Context, company string, excludeID *uuid.UUID) ([]Lead, error)
	FindByPhoneDigits(ctx context.Context, digits string, excludeID *uuid.UUID) ([]Lead, error)
}

// HistoryStore records and reads the per-lead transition trail.
type HistoryStore interface {
	AddStatusHistory(ctx context.Context, params AddStatusHistoryParams) error
	ListStatusHistory(ctx context.Context, leadID uuid.UUID) ([]StatusHistoryEntry, error)
}

// Store is the full repository surface used by the lead service.
type Store interface {
	LeadReader
	LeadWriter
	DuplicateFinder
	HistoryStore
}

// Compile-time checks that Repository satisfies the segregated interfaces.
var _ Store = (*Repository)(nil)
