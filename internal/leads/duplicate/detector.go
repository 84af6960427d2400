// Package duplicate implements the advisory duplicate check run at lead
// creation time. It never blocks a create; callers decide whether to warn.
package duplicate

import (
	"context"
	"strings"

	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/platform/phone"

	"github.com/google/uuid"
)

// Candidate is the profile slice the detector matches on.
type Candidate struct {
	CompanyName  string
	ContactEmail string
	ContactPhone string
	// ExcludeID skips the lead itself when re-checking after an edit.
	ExcludeID *uuid.UUID
}

// Detector runs the enabled match criteria against the repository.
type Detector struct {
	finder repository.DuplicateFinder
}

func NewDetector(finder repository.DuplicateFinder) *Detector {
	return &Detector{finder: finder}
}

// Find returns existing leads matching any enabled, non-empty criterion,
// deduplicated by id. Detection disabled returns an empty slice
// unconditionally. Side effects: none.
func (d *Detector) Find(ctx context.Context, candidate Candidate, cfg settings.DuplicateDetection) ([]repository.Lead, error) {
	matches := make([]repository.Lead, 0)
	if !cfg.Enabled {
		return matches, nil
	}

	seen := make(map[uuid.UUID]bool)
	collect := func(found []repository.Lead) {
		for _, lead := range found {
			if seen[lead.ID] {
				continue
			}
			seen[lead.ID] = true
			matches = append(matches, lead)
		}
	}

	if cfg.ByEmail {
		if email := strings.TrimSpace(candidate.ContactEmail); email != "" {
			found, err := d.finder.FindByEmail(ctx, email, candidate.ExcludeID)
			if err != nil {
				return nil, err
			}
			collect(found)
		}
	}

	if cfg.ByCompany {
		if company := strings.TrimSpace(candidate.CompanyName); company != "" {
			found, err := d.finder.FindByCompany(ctx, company, candidate.ExcludeID)
			if err != nil {
				return nil, err
			}
			collect(found)
		}
	}

	if cfg.ByPhone {
		if digits := phone.DigitsOnly(candidate.ContactPhone); digits != "" {
			found, err := d.finder.FindByPhoneDigits(ctx, digits, candidate.ExcludeID)
			if err != nil {
				return nil, err
			}
			collect(found)
		}
	}

	return matches, nil
}
