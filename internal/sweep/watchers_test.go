package sweep

import (
	"testing"
	"time"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"

	"github.com/google/uuid"
)

func watcherSettings() settings.Settings {
	cfg := settings.Defaults()
	cfg.ColdLeadAlert.Enabled = true
	cfg.StaleLeadAlert.Enabled = true
	cfg.OverdueActionAlert.Enabled = true
	return cfg
}

func TestIsCold_NeverContactedIsCold(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	lead := repository.Lead{ID: uuid.New(), Status: domain.StatusContacted, StatusChangedAt: now}

	if !IsCold(lead, watcherSettings(), now) {
		t.Fatal("a lead with no contact at all must be cold")
	}
}

func TestIsCold_RefreshedContactClearsTheFlag(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cfg := watcherSettings()

	old := now.Add(-8 * 24 * time.Hour)
	lead := repository.Lead{ID: uuid.New(), Status: domain.StatusContacted, LastContactAt: &old, StatusChangedAt: now}
	if !IsCold(lead, cfg, now) {
		t.Fatal("8 days without contact against a 7 day threshold must be cold")
	}

	fresh := now.Add(-time.Minute)
	lead.LastContactAt = &fresh
	if IsCold(lead, cfg, now) {
		t.Fatal("a just-contacted lead must not be cold")
	}
}

func TestIsCold_DisabledWatcherNeverFires(t *testing.T) {
	now := time.Now()
	cfg := watcherSettings()
	cfg.ColdLeadAlert.Enabled = false

	lead := repository.Lead{ID: uuid.New(), Status: domain.StatusContacted, StatusChangedAt: now}
	if IsCold(lead, cfg, now) {
		t.Fatal("disabled cold watcher must not fire")
	}
}

func TestIsStale_ThresholdIsExclusive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cfg := watcherSettings()

	exactly := repository.Lead{StatusChangedAt: now.Add(-14 * 24 * time.Hour)}
	if IsStale(exactly, cfg, now) {
		t.Fatal("exactly at the threshold is not yet stale")
	}

	over := repository.Lead{StatusChangedAt: now.Add(-14*24*time.Hour - time.Second)}
	if !IsStale(over, cfg, now) {
		t.Fatal("past the threshold must be stale")
	}
}

func TestIsOverdue_RequiresAPastNextAction(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cfg := watcherSettings()

	if IsOverdue(repository.Lead{StatusChangedAt: now}, cfg, now) {
		t.Fatal("no next action means nothing can be overdue")
	}

	future := now.Add(time.Hour)
	if IsOverdue(repository.Lead{NextActionAt: &future, StatusChangedAt: now}, cfg, now) {
		t.Fatal("a future next action is not overdue")
	}

	exact := now
	if IsOverdue(repository.Lead{NextActionAt: &exact, StatusChangedAt: now}, cfg, now) {
		t.Fatal("an action due exactly now is not yet overdue")
	}

	past := now.Add(-time.Minute)
	if !IsOverdue(repository.Lead{NextActionAt: &past, StatusChangedAt: now}, cfg, now) {
		t.Fatal("a past next action must be overdue")
	}
}

func TestNeedsProposalReminder_OnlyFiresInProposal(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cfg := watcherSettings()
	cfg.ProposalReminder.Enabled = true

	old := now.Add(-6 * 24 * time.Hour)
	inProposal := repository.Lead{Status: domain.StatusProposal, StatusChangedAt: old}
	if !NeedsProposalReminder(inProposal, cfg, now) {
		t.Fatal("an aged proposal must need a reminder")
	}

	inDemo := repository.Lead{Status: domain.StatusDemo, StatusChangedAt: old}
	if NeedsProposalReminder(inDemo, cfg, now) {
		t.Fatal("only PROPOSAL leads get proposal reminders")
	}
}

func TestEvaluate_ALeadCanCarrySeveralAlerts(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cfg := watcherSettings()

	past := now.Add(-time.Hour)
	lead := repository.Lead{
		ID:              uuid.New(),
		Status:          domain.StatusContacted,
		StatusChangedAt: now.Add(-20 * 24 * time.Hour),
		NextActionAt:    &past,
	}

	alerts := Evaluate(lead, cfg, now)
	if len(alerts) != 3 {
		t.Fatalf("expected cold, stale and overdue, got %d alerts", len(alerts))
	}

	categories := make(map[Category]bool)
	for _, alert := range alerts {
		categories[alert.Category] = true
		if alert.LeadID != lead.ID {
			t.Fatal("alert must carry the lead id")
		}
	}
	for _, want := range []Category{CategoryCold, CategoryStale, CategoryOverdue} {
		if !categories[want] {
			t.Fatalf("missing %s alert", want)
		}
	}
}
