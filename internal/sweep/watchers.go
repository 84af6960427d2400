package sweep

import (
	"time"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"
)

// The watchers are pure predicates over (lead, configuration, now). The
// orchestrator and the alerts read model both call them, so a lead whose
// lastContactAt was just refreshed drops out of the feed immediately.

func days(count int) time.Duration {
	return time.Duration(count) * 24 * time.Hour
}

// IsCold flags a lead never contacted or not contacted within the threshold.
func IsCold(lead repository.Lead, cfg settings.Settings, now time.Time) bool {
	if !cfg.ColdLeadAlert.Enabled {
		return false
	}
	if lead.LastContactAt == nil {
		return true
	}
	return now.Sub(*lead.LastContactAt) > days(cfg.ColdLeadAlert.ThresholdDays)
}

// IsStale flags a lead whose status has not moved within the threshold.
func IsStale(lead repository.Lead, cfg settings.Settings, now time.Time) bool {
	if !cfg.StaleLeadAlert.Enabled {
		return false
	}
	return now.Sub(lead.StatusChangedAt) > days(cfg.StaleLeadAlert.ThresholdDays)
}

// IsOverdue flags a lead whose scheduled next action is strictly in the past.
func IsOverdue(lead repository.Lead, cfg settings.Settings, now time.Time) bool {
	if !cfg.OverdueActionAlert.Enabled {
		return false
	}
	return lead.NextActionAt != nil && lead.NextActionAt.Before(now)
}

// NeedsEscalation measures pipeline inactivity against the escalation
// threshold, independently of the three watchers.
func NeedsEscalation(lead repository.Lead, cfg settings.Settings, now time.Time) bool {
	if !cfg.Escalation.Enabled {
		return false
	}
	return now.Sub(lead.StatusChangedAt) > days(cfg.Escalation.ThresholdDays)
}

// NeedsProposalReminder flags a proposal sitting unanswered past its
// threshold.
func NeedsProposalReminder(lead repository.Lead, cfg settings.Settings, now time.Time) bool {
	if !cfg.ProposalReminder.Enabled {
		return false
	}
	if lead.Status != domain.StatusProposal {
		return false
	}
	return now.Sub(lead.StatusChangedAt) > days(cfg.ProposalReminder.ThresholdDays)
}

// Evaluate runs the enabled watchers for one lead. A lead may carry several
// alerts at once.
func Evaluate(lead repository.Lead, cfg settings.Settings, now time.Time) []Alert {
	alerts := make([]Alert, 0, 3)
	if IsCold(lead, cfg, now) {
		alerts = append(alerts, Alert{LeadID: lead.ID, Category: CategoryCold, ComputedAt: now})
	}
	if IsStale(lead, cfg, now) {
		alerts = append(alerts, Alert{LeadID: lead.ID, Category: CategoryStale, ComputedAt: now})
	}
	if IsOverdue(lead, cfg, now) {
		alerts = append(alerts, Alert{LeadID: lead.ID, Category: CategoryOverdue, ComputedAt: now})
	}
	return alerts
}
