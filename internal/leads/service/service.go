// Package service orchestrates the lead lifecycle: creation with duplicate
// advice, round-robin assignment and scoring, profile edits with rescoring,
// and pipeline transitions through the state machine.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sales_portal_backend/internal/events"
	"sales_portal_backend/internal/leads/assign"
	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/duplicate"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/leads/scoring"
	"sales_portal_backend/internal/leads/transition"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/platform/apperr"
	"sales_portal_backend/platform/logger"
	"sales_portal_backend/platform/phone"

	"github.com/google/uuid"
)

// transitionRetries bounds the optimistic read-modify-write loop when a
// concurrent writer changes a lead's status between our read and commit.
const transitionRetries = 3

type Service struct {
	repo     repository.Store
	settings settings.Provider
	detector *duplicate.Detector
	assigner *assign.Engine
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

func New(repo repository.Store, provider settings.Provider, detector *duplicate.Detector, assigner *assign.Engine, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: provider,
		detector: detector,
		assigner: assigner,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests use this.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	CompanyName     string
	ContactName     *string
	ContactEmail    *string
	ContactPhone    *string
	Source          *string
	EstimatedBudget *float64
	Priority        domain.Priority
	Notes           *string
	AssignedTo      *uuid.UUID
}

// CreateResult pairs the stored lead with the advisory duplicate matches.
type CreateResult struct {
	Lead       repository.Lead
	Duplicates []repository.Lead
}

// Create runs the creation pipeline: duplicate advice, round-robin
// assignment, scoring, auto-qualification, then the single repository write.
// Duplicates never block the create.
func (s *Service) Create(ctx context.Context, params CreateParams) (CreateResult, error) {
	if strings.TrimSpace(params.CompanyName) == "" {
		return CreateResult{}, apperr.Validation("company name is required")
	}
	if params.Priority == "" {
		params.Priority = domain.PriorityNormal
	}
	if !params.Priority.IsKnown() {
		return CreateResult{}, apperr.Validation("unknown priority")
	}

	if params.ContactPhone != nil {
		normalized := phone.NormalizeE164(*params.ContactPhone)
		params.ContactPhone = &normalized
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return CreateResult{}, err
	}

	duplicates, err := s.detector.Find(ctx, duplicate.Candidate{
		CompanyName:  params.CompanyName,
		ContactEmail: deref(params.ContactEmail),
		ContactPhone: deref(params.ContactPhone),
	}, cfg.DuplicateDetection)
	if err != nil {
		s.log.LeadStageError("duplicate-detection", "", err)
		return CreateResult{}, apperr.Wrap(apperr.KindInternal, "duplicate detection failed", err)
	}

	assignedTo := params.AssignedTo
	assignmentReason := ""
	if assignedTo == nil && cfg.RoundRobinAssignment {
		next, err := s.assigner.Next(ctx)
		if err != nil {
			s.log.LeadStageError("assignment", "", err)
			return CreateResult{}, apperr.Wrap(apperr.KindInternal, "assignment failed", err)
		}
		if next != nil {
			assignedTo = &next.ID
			assignmentReason = "round-robin"
		}
	}

	status := domain.StatusLead
	autoQualified := false
	if cfg.AutoQualification && hasQualifyingFields(params.Source, params.EstimatedBudget) {
		status = domain.StatusQualified
		autoQualified = true
	}

	var score *int
	if cfg.Scoring {
		value := scoring.Score(scoring.Input{
			EstimatedBudget: params.EstimatedBudget,
			Source:          deref(params.Source),
			Priority:        params.Priority,
			HasEmail:        deref(params.ContactEmail) != "",
			HasPhone:        deref(params.ContactPhone) != "",
		}, cfg.ScoringWeights)
		score = &value
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		CompanyName:     strings.TrimSpace(params.CompanyName),
		ContactName:     params.ContactName,
		ContactEmail:    params.ContactEmail,
		ContactPhone:    params.ContactPhone,
		Source:          params.Source,
		EstimatedBudget: params.EstimatedBudget,
		Priority:        params.Priority,
		Status:          status,
		AssignedTo:      assignedTo,
		Score:           score,
		Notes:           params.Notes,
	})
	if err != nil {
		s.log.LeadStageError("create", "", err)
		return CreateResult{}, apperr.Wrap(apperr.KindInternal, "create lead", err)
	}

	if err := s.repo.AddStatusHistory(ctx, repository.AddStatusHistoryParams{
		LeadID:    lead.ID,
		NewStatus: lead.Status,
		Automatic: autoQualified,
	}); err != nil {
		s.log.LeadStageError("history", lead.ID.String(), err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		CompanyName: lead.CompanyName,
		AssignedTo:  lead.AssignedTo,
		Score:       lead.Score,
		Status:      string(lead.Status),
	})
	if assignmentReason != "" && lead.AssignedTo != nil {
		s.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			CompanyName: lead.CompanyName,
			NewAssignee: *lead.AssignedTo,
			Reason:      assignmentReason,
		})
	}

	return CreateResult{Lead: lead, Duplicates: duplicates}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "load lead", err)
	}
	return lead, nil
}

func (s *Service) List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error) {
	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list leads", err)
	}
	return leads, total, nil
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]repository.StatusHistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListStatusHistory(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load history", err)
	}
	return entries, nil
}

type UpdateParams struct {
	CompanyName        *string
	ContactName        *string
	ContactNameSet     bool
	ContactEmail       *string
	ContactEmailSet    bool
	ContactPhone       *string
	ContactPhoneSet    bool
	Source             *string
	SourceSet          bool
	EstimatedBudget    *float64
	EstimatedBudgetSet bool
	Priority           *domain.Priority
	Notes              *string
	NotesSet           bool
	AssignedTo         *uuid.UUID
	AssignedToSet      bool
}

// Update edits the profile, recomputes the score when a scoring-relevant
// field changed, and re-runs auto-qualification for leads still in LEAD.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (repository.Lead, error) {
	if params.CompanyName != nil && strings.TrimSpace(*params.CompanyName) == "" {
		return repository.Lead{}, apperr.Validation("company name must not be empty")
	}
	if params.Priority != nil && !params.Priority.IsKnown() {
		return repository.Lead{}, apperr.Validation("unknown priority")
	}
	if params.ContactPhoneSet && params.ContactPhone != nil {
		normalized := phone.NormalizeE164(*params.ContactPhone)
		params.ContactPhone = &normalized
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return repository.Lead{}, err
	}

	repoParams := repository.UpdateLeadParams{
		CompanyName:        params.CompanyName,
		ContactName:        params.ContactName,
		ContactNameSet:     params.ContactNameSet,
		ContactEmail:       params.ContactEmail,
		ContactEmailSet:    params.ContactEmailSet,
		ContactPhone:       params.ContactPhone,
		ContactPhoneSet:    params.ContactPhoneSet,
		Source:             params.Source,
		SourceSet:          params.SourceSet,
		EstimatedBudget:    params.EstimatedBudget,
		EstimatedBudgetSet: params.EstimatedBudgetSet,
		Priority:           params.Priority,
		Notes:              params.Notes,
		NotesSet:           params.NotesSet,
		AssignedTo:         params.AssignedTo,
		AssignedToSet:      params.AssignedToSet,
	}

	lead, err := s.repo.Update(ctx, id, repoParams)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		s.log.LeadStageError("update", id.String(), err)
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "update lead", err)
	}

	if cfg.Scoring && scoringFieldsTouched(params) {
		value := scoring.Score(scoreInput(lead), cfg.ScoringWeights)
		if lead.Score == nil || *lead.Score != value {
			lead, err = s.repo.Update(ctx, id, repository.UpdateLeadParams{Score: &value, ScoreSet: true})
			if err != nil {
				s.log.LeadStageError("rescore", id.String(), err)
				return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "rescore lead", err)
			}
		}
	}

	// An edit that fills in source and budget qualifies a LEAD automatically.
	if lead.Status == domain.StatusLead && cfg.AutoQualification && transition.HasQualifyingFields(lead) {
		qualified, err := s.applyTransition(ctx, lead, domain.StatusLead, cfg, false, nil)
		if errors.Is(err, repository.ErrStale) {
			return repository.Lead{}, apperr.Conflict("lead is being modified concurrently, retry")
		}
		if err != nil {
			s.log.LeadStageError("auto-qualify", id.String(), err)
			return repository.Lead{}, err
		}
		lead = qualified
	}

	return lead, nil
}

// Transition moves a lead to the target status through the state machine.
// The read-modify-write retries a bounded number of times when a concurrent
// writer commits first.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target domain.Status, actor *uuid.UUID) (repository.Lead, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return repository.Lead{}, err
	}

	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		lead, err := s.Get(ctx, id)
		if err != nil {
			return repository.Lead{}, err
		}

		updated, err := s.applyTransition(ctx, lead, target, cfg, true, actor)
		if errors.Is(err, repository.ErrStale) {
			lastErr = err
			continue
		}
		if err != nil {
			return repository.Lead{}, err
		}
		return updated, nil
	}

	s.log.LeadStageError("transition", id.String(), lastErr)
	return repository.Lead{}, apperr.Conflict("lead is being modified concurrently, retry")
}

// applyTransition computes effects and commits them in one guarded write.
// Callers handle repository.ErrStale for their retry policy.
func (s *Service) applyTransition(ctx context.Context, lead repository.Lead, target domain.Status, cfg settings.Settings, explicit bool, actor *uuid.UUID) (repository.Lead, error) {
	effects, err := transition.Apply(lead, target, cfg, s.now(), explicit)
	if err != nil {
		return repository.Lead{}, err
	}

	if !effects.StatusChanged {
		return lead, nil
	}

	updated, err := s.repo.CommitTransition(ctx, lead.ID, lead.Status, effects.Patch)
	if errors.Is(err, repository.ErrStale) || errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, err
	}
	if err != nil {
		s.log.LeadStageError("transition-commit", lead.ID.String(), err)
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "commit transition", err)
	}

	oldStatus := lead.Status
	if err := s.repo.AddStatusHistory(ctx, repository.AddStatusHistoryParams{
		LeadID:    updated.ID,
		OldStatus: &oldStatus,
		NewStatus: updated.Status,
		ChangedBy: actor,
		Automatic: effects.AutoQualified || !explicit,
	}); err != nil {
		s.log.LeadStageError("history", updated.ID.String(), err)
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      updated.ID,
		CompanyName: updated.CompanyName,
		OldStatus:   string(oldStatus),
		NewStatus:   string(updated.Status),
		Automatic:   effects.AutoQualified || !explicit,
		AssignedTo:  updated.AssignedTo,
	})

	return updated, nil
}

func scoringFieldsTouched(params UpdateParams) bool {
	return params.EstimatedBudgetSet || params.SourceSet || params.Priority != nil ||
		params.ContactEmailSet || params.ContactPhoneSet
}

func scoreInput(lead repository.Lead) scoring.Input {
	return scoring.Input{
		EstimatedBudget: lead.EstimatedBudget,
		Source:          deref(lead.Source),
		Priority:        lead.Priority,
		HasEmail:        lead.ContactEmail != nil && strings.TrimSpace(*lead.ContactEmail) != "",
		HasPhone:        lead.ContactPhone != nil && strings.TrimSpace(*lead.ContactPhone) != "",
	}
}

func hasQualifyingFields(source *string, budget *float64) bool {
	return source != nil && strings.TrimSpace(*source) != "" && budget != nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
