// Package team is the salesperson roster read model and the round-robin
// rotation cursor.
package team

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("team member not found")

// Salesperson is one roster entry. The roster order is stable (created_at,
// then id) so the rotation cursor indexes a deterministic sequence.
type Salesperson struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveSalespeople returns the ordered roster of active admin/sales
// accounts.
func (r *Repository) ListActiveSalespeople(ctx context.Context) ([]Salesperson, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, role, active, created_at
		FROM team_members
		WHERE active = true AND role IN ('admin', 'sales')
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	people := make([]Salesperson, 0)
	for rows.Next() {
		var p Salesperson
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return people, nil
}

// GetByID returns a team member regardless of active state.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Salesperson, error) {
	var p Salesperson
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, role, active, created_at
		FROM team_members WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Salesperson{}, ErrNotFound
	}
	return p, err
}

// NextRotationPosition advances the round-robin cursor by one, modulo the
// roster size, and returns the new position. The single UPDATE makes the
// read-and-advance atomic across server instances: two concurrent creations
// can never observe the same position.
func (r *Repository) NextRotationPosition(ctx context.Context, rosterSize int) (int, error) {
	var position int
	err := r.pool.QueryRow(ctx, `
		UPDATE assignment_rotation
		SET position = (position + 1) % $1, updated_at = now()
		WHERE id = 1
		RETURNING position
	`, rosterSize).Scan(&position)
	return position, err
}
