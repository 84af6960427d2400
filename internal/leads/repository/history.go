package repository

import (
	"context"
	"time"

	"sales_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// StatusHistoryEntry is one accepted transition of a lead.
type StatusHistoryEntry struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	OldStatus *domain.Status
	NewStatus domain.Status
	ChangedBy *uuid.UUID
	Automatic bool
	ChangedAt time.Time
}

type AddStatusHistoryParams struct {
	LeadID    uuid.UUID
	OldStatus *domain.Status
	NewStatus domain.Status
	ChangedBy *uuid.UUID
	Automatic bool
}

// AddStatusHistory appends a history row. History is append-only.
func (r *Repository) AddStatusHistory(ctx context.Context, params AddStatusHistoryParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_status_history (lead_id, old_status, new_status, changed_by, automatic)
		VALUES ($1, $2, $3, $4, $5)
	`, params.LeadID, params.OldStatus, params.NewStatus, params.ChangedBy, params.Automatic)
	return err
}

// ListStatusHistory returns a lead's transitions, newest first.
func (r *Repository) ListStatusHistory(ctx context.Context, leadID uuid.UUID) ([]StatusHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, old_status, new_status, changed_by, automatic, changed_at
		FROM lead_status_history
		WHERE lead_id = $1
		ORDER BY changed_at DESC, id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]StatusHistoryEntry, 0)
	for rows.Next() {
		var entry StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.OldStatus, &entry.NewStatus,
			&entry.ChangedBy, &entry.Automatic, &entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return entries, nil
}
