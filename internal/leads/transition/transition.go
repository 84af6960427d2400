// Package transition is the pipeline state machine. Apply computes the full
// side-effect set of a status change in memory; the caller commits it with a
// single guarded repository write, so a transition either lands completely or
// not at all.
package transition

import (
	"fmt"
	"strings"
	"time"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/platform/apperr"
)

// Effects is the computed outcome of one transition request.
type Effects struct {
	// FinalStatus is the status the lead ends in. It differs from the
	// requested target when auto-qualification rewrote it.
	FinalStatus domain.Status
	// StatusChanged reports whether the status actually changes value.
	// statusChangedAt is stamped if and only if this is true.
	StatusChanged bool
	// AutoQualified reports that the engine forced QUALIFIED.
	AutoQualified bool
	// Patch is the single repository write that commits the transition.
	Patch repository.TransitionPatch
}

// Apply validates a requested transition for the given lead and computes its
// side effects against the current configuration.
//
// explicit marks a user-requested transition. Auto-qualification pre-empts
// automatic entry into LEAD (creation, edits) but never an explicit regression
// a user asked for.
func Apply(lead repository.Lead, target domain.Status, cfg settings.Settings, now time.Time, explicit bool) (Effects, error) {
	if !target.IsKnown() {
		return Effects{}, apperr.Validation(fmt.Sprintf("unknown status %q", target))
	}

	if lead.Status.IsTerminal() {
		return Effects{}, apperr.InvalidTransition(
			fmt.Sprintf("lead is closed as %s and accepts no further transitions", lead.Status))
	}

	final := target
	autoQualified := false
	if shouldAutoQualify(lead, target, cfg, explicit) {
		final = domain.StatusQualified
		autoQualified = true
	}

	effects := Effects{
		FinalStatus:   final,
		StatusChanged: final != lead.Status,
		AutoQualified: autoQualified,
		Patch:         repository.TransitionPatch{Status: final},
	}

	if !effects.StatusChanged {
		return effects, nil
	}

	stamp := now
	effects.Patch.StatusChangedAt = &stamp

	switch final {
	case domain.StatusContacted:
		if cfg.AutoStampOnContacted {
			effects.Patch.LastContactAt = &stamp
			effects.Patch.LastContactAtSet = true
		}
	case domain.StatusDemo:
		if cfg.DemoFollowUp.Enabled {
			next := now.AddDate(0, 0, cfg.DemoFollowUp.OffsetDays)
			effects.Patch.NextActionAt = &next
			effects.Patch.NextActionAtSet = true
		}
	case domain.StatusProposal:
		if cfg.ProposalFollowUp.Enabled {
			next := now.AddDate(0, 0, cfg.ProposalFollowUp.OffsetDays)
			effects.Patch.NextActionAt = &next
			effects.Patch.NextActionAtSet = true
		}
	case domain.StatusWon, domain.StatusLost:
		if cfg.ClearNextActionOnClose {
			effects.Patch.NextActionAt = nil
			effects.Patch.NextActionAtSet = true
		}
	}

	return effects, nil
}

// shouldAutoQualify decides whether the engine rewrites the target to
// QUALIFIED: the lead must still be in LEAD with both a non-empty source and
// a budget, and the request must be an automatic entry into LEAD rather than
// an explicit user regression.
func shouldAutoQualify(lead repository.Lead, target domain.Status, cfg settings.Settings, explicit bool) bool {
	if !cfg.AutoQualification {
		return false
	}
	if lead.Status != domain.StatusLead || target != domain.StatusLead {
		return false
	}
	if explicit {
		return false
	}
	return HasQualifyingFields(lead)
}

// HasQualifyingFields reports whether the lead carries the data that
// auto-qualification keys on.
func HasQualifyingFields(lead repository.Lead) bool {
	hasSource := lead.Source != nil && strings.TrimSpace(*lead.Source) != ""
	return hasSource && lead.EstimatedBudget != nil
}
