package sweep

import (
	"context"
	"fmt"
	"time"

	"sales_portal_backend/internal/events"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/notification"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/internal/team"
	"sales_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Reassigner picks salespeople from the rotation.
type Reassigner interface {
	Next(ctx context.Context) (*team.Salesperson, error)
	NextExcluding(ctx context.Context, exclude uuid.UUID) (*team.Salesperson, error)
}

// AssignmentWriter updates a lead's assignee.
type AssignmentWriter interface {
	UpdateAssignment(ctx context.Context, id uuid.UUID, assignedTo *uuid.UUID) (repository.Lead, error)
}

// Resolver decides and executes the escalation action for one inactive lead.
type Resolver struct {
	assigner Reassigner
	leads    AssignmentWriter
	emitter  notification.Emitter
	bus      events.Bus
	log      *logger.Logger
}

func NewResolver(assigner Reassigner, leads AssignmentWriter, emitter notification.Emitter, bus events.Bus, log *logger.Logger) *Resolver {
	return &Resolver{assigner: assigner, leads: leads, emitter: emitter, bus: bus, log: log}
}

// Escalate applies the configured action mode. A missing manager or an
// impossible reassignment is logged and skipped rather than failing the
// sweep. Returns whether any escalation action actually fired.
func (r *Resolver) Escalate(ctx context.Context, lead repository.Lead, cfg settings.Escalation, now time.Time) (bool, error) {
	notifyManager := cfg.Mode == settings.EscalationNotifyManager || cfg.Mode == settings.EscalationBoth
	reassign := cfg.Mode == settings.EscalationReassign || cfg.Mode == settings.EscalationBoth

	inactiveDays := int(now.Sub(lead.StatusChangedAt).Hours() / 24)
	escalated := false

	if notifyManager {
		if cfg.ManagerID == nil {
			r.log.Warn("escalation manager notify skipped, no manager configured", "lead_id", lead.ID.String())
		} else {
			err := r.emitter.Enqueue(ctx, *cfg.ManagerID, notification.CategoryEscalation, notification.Payload{
				Title:  "Lead escalated",
				Body:   fmt.Sprintf("%s has had no pipeline activity for %d days.", lead.CompanyName, inactiveDays),
				LeadID: &lead.ID,
			})
			if err != nil {
				return escalated, err
			}
			escalated = true
		}
	}

	if reassign {
		next, err := r.pickNewAssignee(ctx, lead)
		if err != nil {
			return escalated, err
		}
		if next == nil {
			r.log.Warn("escalation reassignment skipped, no alternative salesperson", "lead_id", lead.ID.String())
			return escalated, nil
		}

		previous := lead.AssignedTo
		updated, err := r.leads.UpdateAssignment(ctx, lead.ID, &next.ID)
		if err != nil {
			return escalated, err
		}

		if err := r.emitter.Enqueue(ctx, next.ID, notification.CategoryEscalation, notification.Payload{
			Title:  "Lead reassigned to you",
			Body:   fmt.Sprintf("%s was reassigned to you after %d days of inactivity.", updated.CompanyName, inactiveDays),
			LeadID: &updated.ID,
		}); err != nil {
			return true, err
		}

		r.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           updated.ID,
			CompanyName:      updated.CompanyName,
			PreviousAssignee: previous,
			NewAssignee:      next.ID,
			Reason:           "escalation-reassign",
		})
		escalated = true
	}

	return escalated, nil
}

func (r *Resolver) pickNewAssignee(ctx context.Context, lead repository.Lead) (*team.Salesperson, error) {
	if lead.AssignedTo == nil {
		return r.assigner.Next(ctx)
	}
	return r.assigner.NextExcluding(ctx, *lead.AssignedTo)
}
