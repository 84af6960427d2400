package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"sales_portal_backend/internal/events"
	"sales_portal_backend/internal/leads/assign"
	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/duplicate"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/internal/team"
	"sales_portal_backend/platform/apperr"
	"sales_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory repository with an injectable number of
// simulated commit races.
type fakeStore struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]repository.Lead
	history     []repository.AddStatusHistoryParams
	duplicates  []repository.Lead
	commitRaces int
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]repository.Lead)}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	lead := repository.Lead{
		ID:              uuid.New(),
		CompanyName:     params.CompanyName,
		ContactName:     params.ContactName,
		ContactEmail:    params.ContactEmail,
		ContactPhone:    params.ContactPhone,
		Source:          params.Source,
		EstimatedBudget: params.EstimatedBudget,
		Priority:        params.Priority,
		Status:          params.Status,
		AssignedTo:      params.AssignedTo,
		Score:           params.Score,
		Notes:           params.Notes,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) ([]repository.Lead, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Lead, 0, len(f.leads))
	for _, lead := range f.leads {
		out = append(out, lead)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListOpen(_ context.Context) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if lead.Status.IsOpen() {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.Status]int)
	for _, lead := range f.leads {
		counts[lead.Status]++
	}
	return counts, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.CompanyName != nil {
		lead.CompanyName = *params.CompanyName
	}
	if params.ContactNameSet {
		lead.ContactName = params.ContactName
	}
	if params.ContactEmailSet {
		lead.ContactEmail = params.ContactEmail
	}
	if params.ContactPhoneSet {
		lead.ContactPhone = params.ContactPhone
	}
	if params.SourceSet {
		lead.Source = params.Source
	}
	if params.EstimatedBudgetSet {
		lead.EstimatedBudget = params.EstimatedBudget
	}
	if params.Priority != nil {
		lead.Priority = *params.Priority
	}
	if params.NotesSet {
		lead.Notes = params.Notes
	}
	if params.ScoreSet {
		lead.Score = params.Score
	}
	if params.AssignedToSet {
		lead.AssignedTo = params.AssignedTo
	}
	lead.UpdatedAt = time.Now().UTC()
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) CommitTransition(_ context.Context, id uuid.UUID, expected domain.Status, patch repository.TransitionPatch) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if f.commitRaces > 0 {
		f.commitRaces--
		return repository.Lead{}, repository.ErrStale
	}
	if lead.Status != expected {
		return repository.Lead{}, repository.ErrStale
	}
	lead.Status = patch.Status
	if patch.StatusChangedAt != nil {
		lead.StatusChangedAt = *patch.StatusChangedAt
	}
	if patch.LastContactAtSet {
		lead.LastContactAt = patch.LastContactAt
	}
	if patch.NextActionAtSet {
		lead.NextActionAt = patch.NextActionAt
	}
	if patch.ScoreSet {
		lead.Score = patch.Score
	}
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) UpdateAssignment(_ context.Context, id uuid.UUID, assignedTo *uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.AssignedTo = assignedTo
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) TouchLastContact(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	lead.LastContactAt = &at
	f.leads[id] = lead
	return nil
}

func (f *fakeStore) FindByEmail(_ context.Context, _ string, _ *uuid.UUID) ([]repository.Lead, error) {
	return f.duplicates, nil
}

func (f *fakeStore) FindByCompany(_ context.Context, _ string, _ *uuid.UUID) ([]repository.Lead, error) {
	return f.duplicates, nil
}

func (f *fakeStore) FindByPhoneDigits(_ context.Context, _ string, _ *uuid.UUID) ([]repository.Lead, error) {
	return f.duplicates, nil
}

func (f *fakeStore) AddStatusHistory(_ context.Context, params repository.AddStatusHistoryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, params)
	return nil
}

func (f *fakeStore) ListStatusHistory(_ context.Context, leadID uuid.UUID) ([]repository.StatusHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]repository.StatusHistoryEntry, 0)
	for _, h := range f.history {
		if h.LeadID == leadID {
			entries = append(entries, repository.StatusHistoryEntry{
				LeadID:    h.LeadID,
				OldStatus: h.OldStatus,
				NewStatus: h.NewStatus,
				ChangedBy: h.ChangedBy,
				Automatic: h.Automatic,
			})
		}
	}
	return entries, nil
}

var _ repository.Store = (*fakeStore)(nil)

type fakeProvider struct {
	cfg settings.Settings
}

func (f *fakeProvider) Get(_ context.Context) (settings.Settings, error)      { return f.cfg, nil }
func (f *fakeProvider) GetFresh(_ context.Context) (settings.Settings, error) { return f.cfg, nil }

type fakeRoster struct {
	people   []team.Salesperson
	position int
}

func (f *fakeRoster) ListActiveSalespeople(_ context.Context) ([]team.Salesperson, error) {
	return f.people, nil
}

func (f *fakeRoster) NextRotationPosition(_ context.Context, rosterSize int) (int, error) {
	f.position = (f.position + 1) % rosterSize
	return f.position, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(_ string, _ events.Handler) {}

func (b *recordingBus) byName(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.published {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func automationOn() settings.Settings {
	cfg := settings.Defaults()
	cfg.RoundRobinAssignment = true
	cfg.AutoQualification = true
	cfg.AutoStampOnContacted = true
	cfg.DemoFollowUp.Enabled = true
	cfg.ProposalFollowUp.Enabled = true
	cfg.ClearNextActionOnClose = true
	return cfg
}

func newTestService(store *fakeStore, cfg settings.Settings, roster *fakeRoster) (*Service, *recordingBus) {
	bus := &recordingBus{}
	svc := New(store, &fakeProvider{cfg: cfg}, duplicate.NewDetector(store), assign.NewEngine(roster), bus, logger.New("development"))
	return svc, bus
}

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCreate_RequiresCompanyName(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), automationOn(), &fakeRoster{position: -1})

	_, err := svc.Create(context.Background(), CreateParams{CompanyName: "   "})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_ScoresAndAutoQualifies(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{
		CompanyName:     "Acme SARL",
		ContactEmail:    strPtr("contact@acme.fr"),
		ContactPhone:    strPtr("+33 6 12 34 56 78"),
		Source:          strPtr("Referral"),
		EstimatedBudget: floatPtr(15000),
		Priority:        domain.PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Lead.Status != domain.StatusQualified {
		t.Fatalf("expected auto-qualified lead, got %s", result.Lead.Status)
	}
	if result.Lead.Score == nil || *result.Lead.Score != 95 {
		t.Fatalf("expected score 95, got %v", result.Lead.Score)
	}

	if len(store.history) != 1 {
		t.Fatalf("expected one history row, got %d", len(store.history))
	}
	if !store.history[0].Automatic {
		t.Fatal("auto-qualification at creation must be recorded as automatic")
	}
}

func TestCreate_RoundRobinDistributes(t *testing.T) {
	alice := team.Salesperson{ID: uuid.New(), Name: "Alice"}
	bob := team.Salesperson{ID: uuid.New(), Name: "Bob"}
	roster := &fakeRoster{people: []team.Salesperson{alice, bob}, position: -1}

	store := newFakeStore()
	svc, bus := newTestService(store, automationOn(), roster)

	first, err := svc.Create(context.Background(), CreateParams{CompanyName: "Un"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Create(context.Background(), CreateParams{CompanyName: "Deux"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Lead.AssignedTo == nil || second.Lead.AssignedTo == nil {
		t.Fatal("expected both leads assigned")
	}
	if *first.Lead.AssignedTo == *second.Lead.AssignedTo {
		t.Fatal("two consecutive creations must land on different salespeople")
	}

	assignedEvents := bus.byName(events.LeadAssigned{}.EventName())
	if len(assignedEvents) != 2 {
		t.Fatalf("expected 2 LeadAssigned events, got %d", len(assignedEvents))
	}
	if e := assignedEvents[0].(events.LeadAssigned); e.Reason != "round-robin" {
		t.Fatalf("expected reason round-robin, got %q", e.Reason)
	}
}

func TestCreate_ExplicitAssigneeSkipsRotation(t *testing.T) {
	chosen := uuid.New()
	roster := &fakeRoster{people: []team.Salesperson{{ID: uuid.New()}}, position: -1}
	svc, _ := newTestService(newFakeStore(), automationOn(), roster)

	result, err := svc.Create(context.Background(), CreateParams{CompanyName: "Acme", AssignedTo: &chosen})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Lead.AssignedTo == nil || *result.Lead.AssignedTo != chosen {
		t.Fatal("an explicit assignee must be kept")
	}
	if roster.position != -1 {
		t.Fatal("the rotation cursor must not advance for explicit assignments")
	}
}

func TestCreate_DuplicatesAreAdvisory(t *testing.T) {
	store := newFakeStore()
	store.duplicates = []repository.Lead{{ID: uuid.New(), CompanyName: "Acme SARL"}}
	svc, _ := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{
		CompanyName:  "Acme SARL",
		ContactEmail: strPtr("contact@acme.fr"),
	})
	if err != nil {
		t.Fatalf("duplicates must not block creation: %v", err)
	}
	if len(result.Duplicates) != 1 {
		t.Fatalf("expected 1 duplicate warning, got %d", len(result.Duplicates))
	}
	if result.Lead.ID == uuid.Nil {
		t.Fatal("the lead must still be created")
	}
}

func TestCreate_NormalizesPhone(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{
		CompanyName:  "Acme",
		ContactPhone: strPtr("06 12 34 56 78"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Lead.ContactPhone == nil || !strings.HasPrefix(*result.Lead.ContactPhone, "+33") {
		t.Fatalf("expected E.164 normalization, got %v", result.Lead.ContactPhone)
	}
}

func TestTransition_RetriesPastOneRace(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.commitRaces = 1
	updated, err := svc.Transition(context.Background(), result.Lead.ID, domain.StatusContacted, nil)
	if err != nil {
		t.Fatalf("one race must be absorbed by the retry loop: %v", err)
	}
	if updated.Status != domain.StatusContacted {
		t.Fatalf("expected CONTACTED, got %s", updated.Status)
	}
	if updated.LastContactAt == nil {
		t.Fatal("expected lastContactAt stamped on CONTACTED")
	}
}

func TestTransition_ExhaustedRetriesIsConflict(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.commitRaces = 10
	_, err = svc.Transition(context.Background(), result.Lead.ID, domain.StatusContacted, nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict after exhausted retries, got %v", err)
	}
}

func TestTransition_UnknownLeadIsNotFound(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), automationOn(), &fakeRoster{position: -1})

	_, err := svc.Transition(context.Background(), uuid.New(), domain.StatusContacted, nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransition_PublishesStatusChanged(t *testing.T) {
	store := newFakeStore()
	svc, bus := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actor := uuid.New()
	if _, err := svc.Transition(context.Background(), result.Lead.ID, domain.StatusContacted, &actor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed := bus.byName(events.LeadStatusChanged{}.EventName())
	if len(changed) != 1 {
		t.Fatalf("expected 1 LeadStatusChanged event, got %d", len(changed))
	}
	event := changed[0].(events.LeadStatusChanged)
	if event.OldStatus != string(domain.StatusLead) || event.NewStatus != string(domain.StatusContacted) {
		t.Fatalf("unexpected event statuses %s -> %s", event.OldStatus, event.NewStatus)
	}
	if event.Automatic {
		t.Fatal("an explicit user transition is not automatic")
	}
}

func TestUpdate_RescoresWhenScoringFieldChanges(t *testing.T) {
	store := newFakeStore()
	cfg := automationOn()
	cfg.AutoQualification = false
	svc, _ := newTestService(store, cfg, &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{
		CompanyName:     "Acme",
		EstimatedBudget: floatPtr(500),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := *result.Lead.Score

	updated, err := svc.Update(context.Background(), result.Lead.ID, UpdateParams{
		EstimatedBudget:    floatPtr(20000),
		EstimatedBudgetSet: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Score == nil || *updated.Score <= before {
		t.Fatalf("expected a higher score after the budget raise, got %v (was %d)", updated.Score, before)
	}
}

func TestUpdate_AutoQualifiesWhenFieldsArrive(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, automationOn(), &fakeRoster{position: -1})

	result, err := svc.Create(context.Background(), CreateParams{CompanyName: "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Lead.Status != domain.StatusLead {
		t.Fatalf("expected the lead to start as LEAD, got %s", result.Lead.Status)
	}

	updated, err := svc.Update(context.Background(), result.Lead.ID, UpdateParams{
		Source:             strPtr("Referral"),
		SourceSet:          true,
		EstimatedBudget:    floatPtr(8000),
		EstimatedBudgetSet: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusQualified {
		t.Fatalf("expected auto-qualification after the edit, got %s", updated.Status)
	}

	last := store.history[len(store.history)-1]
	if !last.Automatic {
		t.Fatal("edit-triggered qualification must be recorded as automatic")
	}
}
