// Package scoring computes a lead's fit score from its profile and the
// configured weight table. The computation is a pure function so identical
// inputs always produce the identical score.
package scoring

import (
	"strings"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/settings"
)

// Input is the subset of lead fields the score depends on.
type Input struct {
	EstimatedBudget *float64
	Source          string
	Priority        domain.Priority
	HasEmail        bool
	HasPhone        bool
}

// Sources are free text from a suggested set; matching is keyword-based and
// case-insensitive so "Référé par client" lands in the referral tier.
var (
	referralKeywords = []string{"referral", "référ", "refer", "recommand", "bouche"}
	adsKeywords      = []string{"ads", "adwords", "publicité", "pub", "campagne", "linkedin", "facebook", "google"}
)

// Score sums the configured weights for budget tier, source category,
// priority tier and contact completeness, clamped to [0, 100].
func Score(input Input, weights settings.ScoringWeights) int {
	total := budgetWeight(input.EstimatedBudget, weights)
	total += sourceWeight(input.Source, weights)
	total += priorityWeight(input.Priority, weights)

	if input.HasEmail {
		total += weights.HasEmail
	}
	if input.HasPhone {
		total += weights.HasPhone
	}

	return clampScore(total)
}

func budgetWeight(budget *float64, weights settings.ScoringWeights) int {
	if budget == nil {
		return 0
	}
	switch {
	case *budget > 10000:
		return weights.BudgetHigh
	case *budget >= 1000:
		return weights.BudgetMedium
	default:
		return weights.BudgetLow
	}
}

func sourceWeight(source string, weights settings.ScoringWeights) int {
	normalized := strings.ToLower(strings.TrimSpace(source))
	if normalized == "" {
		return weights.SourceOther
	}

	for _, keyword := range referralKeywords {
		if strings.Contains(normalized, keyword) {
			return weights.SourceReferral
		}
	}
	for _, keyword := range adsKeywords {
		if strings.Contains(normalized, keyword) {
			return weights.SourceAds
		}
	}
	return weights.SourceOther
}

func priorityWeight(priority domain.Priority, weights settings.ScoringWeights) int {
	switch priority {
	case domain.PriorityUrgent:
		return weights.PriorityUrgent
	case domain.PriorityHigh:
		return weights.PriorityHigh
	case domain.PriorityNormal:
		return weights.PriorityNormal
	default:
		// BASSE and unknown priorities contribute nothing.
		return 0
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
