package transition

import (
	"errors"
	"testing"
	"time"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

func enabledSettings() settings.Settings {
	cfg := settings.Defaults()
	cfg.AutoQualification = true
	cfg.AutoStampOnContacted = true
	cfg.DemoFollowUp.Enabled = true
	cfg.ProposalFollowUp.Enabled = true
	cfg.ClearNextActionOnClose = true
	return cfg
}

func openLead(status domain.Status) repository.Lead {
	return repository.Lead{
		ID:              uuid.New(),
		CompanyName:     "Acme SARL",
		Status:          status,
		Priority:        domain.PriorityNormal,
		StatusChangedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestApply_StampsStatusChangedAtOnlyOnRealChange(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	lead := openLead(domain.StatusQualified)

	effects, err := Apply(lead, domain.StatusContacted, enabledSettings(), now, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !effects.StatusChanged {
		t.Fatal("expected status change")
	}
	if effects.Patch.StatusChangedAt == nil || !effects.Patch.StatusChangedAt.Equal(now) {
		t.Fatalf("expected statusChangedAt stamped at %v, got %v", now, effects.Patch.StatusChangedAt)
	}

	same, err := Apply(lead, domain.StatusQualified, enabledSettings(), now, true)
	if err != nil {
		t.Fatalf("unexpected error on same-status transition: %v", err)
	}
	if same.StatusChanged {
		t.Fatal("expected no status change for identical target")
	}
	if same.Patch.StatusChangedAt != nil {
		t.Fatal("statusChangedAt must not be stamped when the status does not change")
	}
}

func TestApply_TerminalStatusRejectsFurtherTransitions(t *testing.T) {
	now := time.Now()

	for _, terminal := range []domain.Status{domain.StatusWon, domain.StatusLost} {
		lead := openLead(terminal)
		_, err := Apply(lead, domain.StatusContacted, enabledSettings(), now, true)
		if err == nil {
			t.Fatalf("expected transition out of %s to fail", terminal)
		}

		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInvalidTransition {
			t.Fatalf("expected invalid transition error, got %v", err)
		}
	}
}

func TestApply_UnknownTargetIsValidationError(t *testing.T) {
	lead := openLead(domain.StatusLead)

	_, err := Apply(lead, domain.Status("ARCHIVED"), enabledSettings(), time.Now(), true)
	if err == nil {
		t.Fatal("expected unknown status to fail")
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApply_ContactedStampsLastContact(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	lead := openLead(domain.StatusQualified)

	effects, err := Apply(lead, domain.StatusContacted, enabledSettings(), now, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !effects.Patch.LastContactAtSet || effects.Patch.LastContactAt == nil {
		t.Fatal("expected lastContactAt to be set")
	}
	if !effects.Patch.LastContactAt.Equal(now) {
		t.Fatalf("expected lastContactAt %v, got %v", now, *effects.Patch.LastContactAt)
	}

	cfg := enabledSettings()
	cfg.AutoStampOnContacted = false
	effects, err = Apply(lead, domain.StatusContacted, cfg, now, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effects.Patch.LastContactAtSet {
		t.Fatal("lastContactAt must stay untouched when the stamp rule is off")
	}
}

func TestApply_DemoSchedulesFollowUpAtConfiguredOffset(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	lead := openLead(domain.StatusContacted)

	effects, err := Apply(lead, domain.StatusDemo, enabledSettings(), now, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !effects.Patch.NextActionAtSet || effects.Patch.NextActionAt == nil {
		t.Fatal("expected nextActionAt to be scheduled")
	}

	want := now.AddDate(0, 0, 3)
	if !effects.Patch.NextActionAt.Equal(want) {
		t.Fatalf("expected nextActionAt %v, got %v", want, *effects.Patch.NextActionAt)
	}
}

func TestApply_ProposalSchedulesFollowUpAtConfiguredOffset(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	lead := openLead(domain.StatusDemo)

	cfg := enabledSettings()
	cfg.ProposalFollowUp.OffsetDays = 8

	effects, err := Apply(lead, domain.StatusProposal, cfg, now, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := now.AddDate(0, 0, 8)
	if effects.Patch.NextActionAt == nil || !effects.Patch.NextActionAt.Equal(want) {
		t.Fatalf("expected nextActionAt %v, got %v", want, effects.Patch.NextActionAt)
	}
}

func TestApply_ClosingClearsNextAction(t *testing.T) {
	now := time.Now()
	next := now.AddDate(0, 0, 2)

	for _, target := range []domain.Status{domain.StatusWon, domain.StatusLost} {
		lead := openLead(domain.StatusProposal)
		lead.NextActionAt = &next

		effects, err := Apply(lead, target, enabledSettings(), now, true)
		if err != nil {
			t.Fatalf("unexpected error closing as %s: %v", target, err)
		}
		if !effects.Patch.NextActionAtSet || effects.Patch.NextActionAt != nil {
			t.Fatalf("expected nextActionAt cleared on close as %s", target)
		}
	}
}

func TestApply_AutoQualifiesAutomaticEntryIntoLead(t *testing.T) {
	now := time.Now()
	source := "Referral"
	budget := 12000.0

	lead := openLead(domain.StatusLead)
	lead.Source = &source
	lead.EstimatedBudget = &budget

	effects, err := Apply(lead, domain.StatusLead, enabledSettings(), now, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !effects.AutoQualified {
		t.Fatal("expected auto-qualification to fire")
	}
	if effects.FinalStatus != domain.StatusQualified {
		t.Fatalf("expected final status QUALIFIED, got %s", effects.FinalStatus)
	}
	if !effects.StatusChanged {
		t.Fatal("auto-qualification is a real status change")
	}
}

func TestApply_ExplicitRegressionToLeadIsHonored(t *testing.T) {
	now := time.Now()
	source := "Referral"
	budget := 12000.0

	lead := openLead(domain.StatusLead)
	lead.Source = &source
	lead.EstimatedBudget = &budget

	effects, err := Apply(lead, domain.StatusLead, enabledSettings(), now, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effects.AutoQualified {
		t.Fatal("an explicit request for LEAD must not be rewritten")
	}
	if effects.FinalStatus != domain.StatusLead {
		t.Fatalf("expected final status LEAD, got %s", effects.FinalStatus)
	}
}

func TestApply_AutoQualificationRequiresSourceAndBudget(t *testing.T) {
	now := time.Now()
	budget := 12000.0
	blank := "   "

	lead := openLead(domain.StatusLead)
	lead.EstimatedBudget = &budget
	lead.Source = &blank

	effects, err := Apply(lead, domain.StatusLead, enabledSettings(), now, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effects.AutoQualified {
		t.Fatal("blank source must not qualify")
	}

	source := "Referral"
	lead.Source = &source
	lead.EstimatedBudget = nil
	effects, err = Apply(lead, domain.StatusLead, enabledSettings(), now, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if effects.AutoQualified {
		t.Fatal("missing budget must not qualify")
	}
}
