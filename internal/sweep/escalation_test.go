package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sales_portal_backend/internal/events"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/notification"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/internal/team"
	"sales_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeReassigner struct {
	roster []team.Salesperson
	cursor int
}

func (f *fakeReassigner) Next(_ context.Context) (*team.Salesperson, error) {
	if len(f.roster) == 0 {
		return nil, nil
	}
	picked := f.roster[f.cursor%len(f.roster)]
	f.cursor++
	return &picked, nil
}

func (f *fakeReassigner) NextExcluding(_ context.Context, exclude uuid.UUID) (*team.Salesperson, error) {
	if len(f.roster) == 0 {
		return nil, nil
	}
	if len(f.roster) == 1 && f.roster[0].ID == exclude {
		return nil, nil
	}
	for range f.roster {
		picked := f.roster[f.cursor%len(f.roster)]
		f.cursor++
		if picked.ID != exclude {
			return &picked, nil
		}
	}
	return nil, nil
}

type fakeAssignmentWriter struct {
	assigned map[uuid.UUID]uuid.UUID
}

func (f *fakeAssignmentWriter) UpdateAssignment(_ context.Context, id uuid.UUID, assignedTo *uuid.UUID) (repository.Lead, error) {
	if f.assigned == nil {
		f.assigned = make(map[uuid.UUID]uuid.UUID)
	}
	f.assigned[id] = *assignedTo
	return repository.Lead{ID: id, CompanyName: "Acme SARL", AssignedTo: assignedTo}, nil
}

type enqueuedNotification struct {
	RecipientID uuid.UUID
	Category    notification.Category
	Payload     notification.Payload
	At          time.Time
}

type fakeEmitter struct {
	mu       sync.Mutex
	entries  []enqueuedNotification
	fail     error
	failures int
}

func (f *fakeEmitter) Enqueue(ctx context.Context, recipientID uuid.UUID, category notification.Category, payload notification.Payload) error {
	return f.EnqueueAt(ctx, recipientID, category, payload, time.Time{})
}

func (f *fakeEmitter) EnqueueAt(_ context.Context, recipientID uuid.UUID, category notification.Category, payload notification.Payload, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("feed unavailable")
	}
	f.entries = append(f.entries, enqueuedNotification{RecipientID: recipientID, Category: category, Payload: payload, At: at})
	return nil
}

func (f *fakeEmitter) byCategory(category notification.Category) []enqueuedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []enqueuedNotification
	for _, e := range f.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
}

func (f *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	f.Publish(ctx, event)
	return nil
}

func (f *fakeBus) Subscribe(_ string, _ events.Handler) {}

func escalationLead(assignee *uuid.UUID, inactiveDays int) repository.Lead {
	return repository.Lead{
		ID:              uuid.New(),
		CompanyName:     "Acme SARL",
		AssignedTo:      assignee,
		StatusChangedAt: time.Now().Add(-time.Duration(inactiveDays) * 24 * time.Hour),
	}
}

func TestEscalate_NotifyManagerMode(t *testing.T) {
	manager := uuid.New()
	emitter := &fakeEmitter{}
	writer := &fakeAssignmentWriter{}
	resolver := NewResolver(&fakeReassigner{}, writer, emitter, &fakeBus{}, logger.New("development"))

	assignee := uuid.New()
	fired, err := resolver.Escalate(context.Background(), escalationLead(&assignee, 12), settings.Escalation{
		Enabled:       true,
		ThresholdDays: 10,
		Mode:          settings.EscalationNotifyManager,
		ManagerID:     &manager,
	}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Fatal("expected escalation to fire")
	}

	notifications := emitter.byCategory(notification.CategoryEscalation)
	if len(notifications) != 1 {
		t.Fatalf("expected 1 manager notification, got %d", len(notifications))
	}
	if notifications[0].RecipientID != manager {
		t.Fatal("notification must go to the configured manager")
	}
	if len(writer.assigned) != 0 {
		t.Fatal("NOTIFY_MANAGER mode must not reassign")
	}
}

func TestEscalate_MissingManagerIsSkippedNotFatal(t *testing.T) {
	emitter := &fakeEmitter{}
	resolver := NewResolver(&fakeReassigner{}, &fakeAssignmentWriter{}, emitter, &fakeBus{}, logger.New("development"))

	assignee := uuid.New()
	fired, err := resolver.Escalate(context.Background(), escalationLead(&assignee, 12), settings.Escalation{
		Enabled:       true,
		ThresholdDays: 10,
		Mode:          settings.EscalationNotifyManager,
	}, time.Now())
	if err != nil {
		t.Fatalf("a missing manager must not fail the sweep: %v", err)
	}
	if fired {
		t.Fatal("nothing fired, escalated must be false")
	}
	if len(emitter.entries) != 0 {
		t.Fatal("no manager configured means no notification")
	}
}

func TestEscalate_ReassignNeverPicksCurrentAssignee(t *testing.T) {
	current := uuid.New()
	other := uuid.New()
	roster := []team.Salesperson{
		{ID: current, Name: "Vendeur A", Email: "a@acme.fr"},
		{ID: other, Name: "Vendeur B", Email: "b@acme.fr"},
	}

	for cursor := 0; cursor < 4; cursor++ {
		emitter := &fakeEmitter{}
		writer := &fakeAssignmentWriter{}
		bus := &fakeBus{}
		resolver := NewResolver(&fakeReassigner{roster: roster, cursor: cursor}, writer, emitter, bus, logger.New("development"))

		lead := escalationLead(&current, 12)
		fired, err := resolver.Escalate(context.Background(), lead, settings.Escalation{
			Enabled:       true,
			ThresholdDays: 10,
			Mode:          settings.EscalationReassign,
		}, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !fired {
			t.Fatal("expected reassignment to fire")
		}
		if got := writer.assigned[lead.ID]; got != other {
			t.Fatalf("cursor %d: reassigned to %s, expected the other salesperson", cursor, got)
		}
		if len(bus.published) != 1 {
			t.Fatalf("expected one LeadAssigned event, got %d", len(bus.published))
		}
		assigned, ok := bus.published[0].(events.LeadAssigned)
		if !ok {
			t.Fatalf("expected LeadAssigned, got %T", bus.published[0])
		}
		if assigned.Reason != "escalation-reassign" {
			t.Fatalf("expected reason escalation-reassign, got %q", assigned.Reason)
		}
	}
}

func TestEscalate_BothModeNotifiesAndReassigns(t *testing.T) {
	manager := uuid.New()
	current := uuid.New()
	other := uuid.New()
	emitter := &fakeEmitter{}
	writer := &fakeAssignmentWriter{}
	resolver := NewResolver(&fakeReassigner{roster: []team.Salesperson{
		{ID: current}, {ID: other},
	}}, writer, emitter, &fakeBus{}, logger.New("development"))

	lead := escalationLead(&current, 15)
	fired, err := resolver.Escalate(context.Background(), lead, settings.Escalation{
		Enabled:       true,
		ThresholdDays: 10,
		Mode:          settings.EscalationBoth,
		ManagerID:     &manager,
	}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Fatal("expected escalation to fire")
	}

	notifications := emitter.byCategory(notification.CategoryEscalation)
	if len(notifications) != 2 {
		t.Fatalf("expected manager and new-assignee notifications, got %d", len(notifications))
	}
	if writer.assigned[lead.ID] != other {
		t.Fatal("BOTH mode must reassign away from the current assignee")
	}
}

func TestEscalate_SingleMemberRosterSkipsReassignment(t *testing.T) {
	only := uuid.New()
	writer := &fakeAssignmentWriter{}
	resolver := NewResolver(&fakeReassigner{roster: []team.Salesperson{{ID: only}}},
		writer, &fakeEmitter{}, &fakeBus{}, logger.New("development"))

	fired, err := resolver.Escalate(context.Background(), escalationLead(&only, 12), settings.Escalation{
		Enabled:       true,
		ThresholdDays: 10,
		Mode:          settings.EscalationReassign,
	}, time.Now())
	if err != nil {
		t.Fatalf("an impossible reassignment must not fail the sweep: %v", err)
	}
	if fired {
		t.Fatal("nothing fired, escalated must be false")
	}
	if len(writer.assigned) != 0 {
		t.Fatal("the lead must keep its assignee")
	}
}
