// Package inapp stores the dashboard notification feed.
package inapp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("notification not found")

// Notification is one feed entry.
type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Category    string
	Title       string
	Body        string
	LeadID      *uuid.UUID
	Read        bool
	CreatedAt   time.Time
}

type InsertParams struct {
	RecipientID uuid.UUID
	Category    string
	Title       string
	Body        string
	LeadID      *uuid.UUID
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, params InsertParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, category, title, body, lead_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, params.RecipientID, params.Category, params.Title, params.Body, params.LeadID).Scan(&id)
	return id, err
}

// ListByRecipient returns the recipient's feed, newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, recipient_id, category, title, body, lead_id, read, created_at
		FROM notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += " AND read = false"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Category, &n.Title, &n.Body, &n.LeadID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

// MarkRead flags one notification as read. Scoped to the recipient so a user
// cannot touch another user's feed.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID, recipientID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read = true
		WHERE id = $1 AND recipient_id = $2
	`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
