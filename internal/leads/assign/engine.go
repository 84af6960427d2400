// Package assign is the round-robin assignment engine. The rotation cursor
// lives in the database as a single-row counter so rotation survives restarts
// and stays correct across server instances.
package assign

import (
	"context"

	"sales_portal_backend/internal/team"

	"github.com/google/uuid"
)

// RosterSource provides the ordered salesperson roster and the atomic cursor.
type RosterSource interface {
	ListActiveSalespeople(ctx context.Context) ([]team.Salesperson, error)
	NextRotationPosition(ctx context.Context, rosterSize int) (int, error)
}

// Engine picks the next salesperson in rotation.
type Engine struct {
	roster RosterSource
}

func NewEngine(roster RosterSource) *Engine {
	return &Engine{roster: roster}
}

// Next returns the next salesperson in rotation. An empty roster is not an
// error: the lead simply stays unassigned.
func (e *Engine) Next(ctx context.Context) (*team.Salesperson, error) {
	people, err := e.roster.ListActiveSalespeople(ctx)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, nil
	}

	position, err := e.roster.NextRotationPosition(ctx, len(people))
	if err != nil {
		return nil, err
	}

	// The stored position may exceed the roster size if people were removed
	// since the last advance; the modulo in SQL plus this guard keep it in
	// range either way.
	picked := people[position%len(people)]
	return &picked, nil
}

// NextExcluding picks the next salesperson who is not exclude, advancing the
// cursor as needed. Best effort: with a roster of one the excluded person is
// the only choice, so it returns nil and the caller treats the reassignment
// as a no-op.
func (e *Engine) NextExcluding(ctx context.Context, exclude uuid.UUID) (*team.Salesperson, error) {
	people, err := e.roster.ListActiveSalespeople(ctx)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, nil
	}
	if len(people) == 1 && people[0].ID == exclude {
		return nil, nil
	}

	// At most a full rotation: with >= 2 members, one of the first len(people)
	// advances lands on someone else.
	for range people {
		position, err := e.roster.NextRotationPosition(ctx, len(people))
		if err != nil {
			return nil, err
		}
		picked := people[position%len(people)]
		if picked.ID != exclude {
			return &picked, nil
		}
	}

	return nil, nil
}
