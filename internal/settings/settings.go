// Package settings is the automation configuration store: feature toggles,
// day thresholds and the scoring weight table, mutated only through validated
// dotted-path patches.
package settings

import (
	"fmt"
	"regexp"

	"sales_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// EscalationMode selects what happens when a lead sits untouched past the
// escalation threshold.
type EscalationMode string

const (
	EscalationNotifyManager EscalationMode = "NOTIFY_MANAGER"
	EscalationReassign      EscalationMode = "REASSIGN"
	EscalationBoth          EscalationMode = "BOTH"
)

// FollowUpRule schedules a next action a fixed number of days after a status
// is entered.
type FollowUpRule struct {
	Enabled    bool `json:"enabled"`
	OffsetDays int  `json:"offsetDays"`
}

// DuplicateDetection controls the advisory duplicate check at creation time.
type DuplicateDetection struct {
	Enabled   bool `json:"enabled"`
	ByEmail   bool `json:"byEmail"`
	ByCompany bool `json:"byCompany"`
	ByPhone   bool `json:"byPhone"`
}

// ColdLeadAlert flags leads without a recent contact touch.
type ColdLeadAlert struct {
	Enabled       bool `json:"enabled"`
	ThresholdDays int  `json:"thresholdDays"`
	EmailDigest   bool `json:"emailDigest"`
}

// OverdueActionAlert flags leads whose next action date has passed.
type OverdueActionAlert struct {
	Enabled     bool   `json:"enabled"`
	DailyDigest bool   `json:"dailyDigest"`
	DigestTime  string `json:"digestTime"` // HH:MM, 24h
}

// StaleLeadAlert flags leads without a recent status change.
type StaleLeadAlert struct {
	Enabled       bool `json:"enabled"`
	ThresholdDays int  `json:"thresholdDays"`
}

// ProposalReminder nudges the assignee when a proposal has been out too long.
type ProposalReminder struct {
	Enabled       bool `json:"enabled"`
	ThresholdDays int  `json:"thresholdDays"`
}

// Escalation reacts to prolonged pipeline inactivity.
type Escalation struct {
	Enabled       bool           `json:"enabled"`
	ThresholdDays int            `json:"thresholdDays"`
	Mode          EscalationMode `json:"mode"`
	ManagerID     *uuid.UUID     `json:"managerId"`
}

// WeeklyReport summarizes the pipeline to a recipient list once a week.
type WeeklyReport struct {
	Enabled    bool        `json:"enabled"`
	DayOfWeek  int         `json:"dayOfWeek"` // 0 = Sunday .. 6 = Saturday
	Time       string      `json:"time"`      // HH:MM, 24h
	Recipients []uuid.UUID `json:"recipients"`
}

// ScoringWeights is the named weight table the scoring engine reads.
type ScoringWeights struct {
	BudgetHigh     int `json:"budgetHigh"`
	BudgetMedium   int `json:"budgetMedium"`
	BudgetLow      int `json:"budgetLow"`
	SourceReferral int `json:"sourceReferral"`
	SourceAds      int `json:"sourceAds"`
	SourceOther    int `json:"sourceOther"`
	PriorityUrgent int `json:"priorityUrgent"`
	PriorityHigh   int `json:"priorityHigh"`
	PriorityNormal int `json:"priorityNormal"`
	HasEmail       int `json:"hasEmail"`
	HasPhone       int `json:"hasPhone"`
}

// Settings is the full automation configuration record.
type Settings struct {
	RoundRobinAssignment   bool               `json:"roundRobinAssignment"`
	AutoQualification      bool               `json:"autoQualification"`
	AutoStampOnContacted   bool               `json:"autoStampOnContacted"`
	DemoFollowUp           FollowUpRule       `json:"demoFollowUp"`
	ProposalFollowUp       FollowUpRule       `json:"proposalFollowUp"`
	ClearNextActionOnClose bool               `json:"clearNextActionOnClose"`
	Scoring                bool               `json:"scoring"`
	DuplicateDetection     DuplicateDetection `json:"duplicateDetection"`
	ColdLeadAlert          ColdLeadAlert      `json:"coldLeadAlert"`
	OverdueActionAlert     OverdueActionAlert `json:"overdueActionAlert"`
	StaleLeadAlert         StaleLeadAlert     `json:"staleLeadAlert"`
	ProposalReminder       ProposalReminder   `json:"proposalReminder"`
	Escalation             Escalation         `json:"escalation"`
	WeeklyReport           WeeklyReport       `json:"weeklyReport"`
	ScoringWeights         ScoringWeights     `json:"scoringWeights"`
}

// Defaults returns the installation's initial configuration. Scoring and
// duplicate detection start enabled; every other automation starts off until
// an admin opts in.
func Defaults() Settings {
	return Settings{
		Scoring: true,
		DuplicateDetection: DuplicateDetection{
			Enabled:   true,
			ByEmail:   true,
			ByCompany: true,
			ByPhone:   true,
		},
		DemoFollowUp:     FollowUpRule{OffsetDays: 3},
		ProposalFollowUp: FollowUpRule{OffsetDays: 5},
		ColdLeadAlert: ColdLeadAlert{
			ThresholdDays: 7,
		},
		OverdueActionAlert: OverdueActionAlert{
			Enabled:    true,
			DigestTime: "09:00",
		},
		StaleLeadAlert: StaleLeadAlert{
			ThresholdDays: 14,
		},
		ProposalReminder: ProposalReminder{
			ThresholdDays: 5,
		},
		Escalation: Escalation{
			ThresholdDays: 10,
			Mode:          EscalationNotifyManager,
		},
		WeeklyReport: WeeklyReport{
			DayOfWeek: 1,
			Time:      "08:00",
		},
		ScoringWeights: ScoringWeights{
			BudgetHigh:     30,
			BudgetMedium:   20,
			BudgetLow:      10,
			SourceReferral: 25,
			SourceAds:      15,
			SourceOther:    5,
			PriorityUrgent: 20,
			PriorityHigh:   15,
			PriorityNormal: 10,
			HasEmail:       10,
			HasPhone:       10,
		},
	}
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Validate rejects malformed values at the store boundary. A failed patch
// never replaces the prior configuration.
func (s Settings) Validate() error {
	dayFields := []struct {
		name  string
		value int
	}{
		{"demoFollowUp.offsetDays", s.DemoFollowUp.OffsetDays},
		{"proposalFollowUp.offsetDays", s.ProposalFollowUp.OffsetDays},
		{"coldLeadAlert.thresholdDays", s.ColdLeadAlert.ThresholdDays},
		{"staleLeadAlert.thresholdDays", s.StaleLeadAlert.ThresholdDays},
		{"proposalReminder.thresholdDays", s.ProposalReminder.ThresholdDays},
		{"escalation.thresholdDays", s.Escalation.ThresholdDays},
	}
	for _, field := range dayFields {
		if field.value < 1 {
			return apperr.Configuration(fmt.Sprintf("%s must be at least 1 day", field.name))
		}
	}

	weights := []struct {
		name  string
		value int
	}{
		{"scoringWeights.budgetHigh", s.ScoringWeights.BudgetHigh},
		{"scoringWeights.budgetMedium", s.ScoringWeights.BudgetMedium},
		{"scoringWeights.budgetLow", s.ScoringWeights.BudgetLow},
		{"scoringWeights.sourceReferral", s.ScoringWeights.SourceReferral},
		{"scoringWeights.sourceAds", s.ScoringWeights.SourceAds},
		{"scoringWeights.sourceOther", s.ScoringWeights.SourceOther},
		{"scoringWeights.priorityUrgent", s.ScoringWeights.PriorityUrgent},
		{"scoringWeights.priorityHigh", s.ScoringWeights.PriorityHigh},
		{"scoringWeights.priorityNormal", s.ScoringWeights.PriorityNormal},
		{"scoringWeights.hasEmail", s.ScoringWeights.HasEmail},
		{"scoringWeights.hasPhone", s.ScoringWeights.HasPhone},
	}
	for _, weight := range weights {
		if weight.value < 0 || weight.value > 100 {
			return apperr.Configuration(fmt.Sprintf("%s must be between 0 and 100", weight.name))
		}
	}

	switch s.Escalation.Mode {
	case EscalationNotifyManager, EscalationReassign, EscalationBoth:
	default:
		return apperr.Configuration("escalation.mode must be NOTIFY_MANAGER, REASSIGN or BOTH")
	}

	if !clockPattern.MatchString(s.OverdueActionAlert.DigestTime) {
		return apperr.Configuration("overdueActionAlert.digestTime must be HH:MM")
	}
	if !clockPattern.MatchString(s.WeeklyReport.Time) {
		return apperr.Configuration("weeklyReport.time must be HH:MM")
	}
	if s.WeeklyReport.DayOfWeek < 0 || s.WeeklyReport.DayOfWeek > 6 {
		return apperr.Configuration("weeklyReport.dayOfWeek must be between 0 and 6")
	}

	return nil
}
