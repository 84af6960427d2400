package notification

import (
	"context"
	"fmt"

	"sales_portal_backend/internal/events"
	apphttp "sales_portal_backend/internal/http"
	"sales_portal_backend/internal/notification/inapp"
	"sales_portal_backend/internal/notification/outbox"
	"sales_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the notification bounded context: the in-app feed, the email
// outbox and the event subscriptions that feed them.
type Module struct {
	service *Service
	outbox  *outbox.Repository
	handler *Handler
}

// NewModule wires the notification stores and subscribes to the lead events
// that produce feed entries.
func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	feed := inapp.New(pool)
	box := outbox.New(pool)
	service := NewService(feed, box, log)

	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadAssigned)
		if !ok {
			return nil
		}
		return service.Enqueue(ctx, e.NewAssignee, CategoryLeadAssigned, Payload{
			Title:  "Lead assigned to you",
			Body:   fmt.Sprintf("%s is now in your pipeline (%s).", e.CompanyName, e.Reason),
			LeadID: &e.LeadID,
		})
	}))

	return &Module{
		service: service,
		outbox:  box,
		handler: NewHandler(feed),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Emitter exposes the enqueue surface to the lead engine and the sweep.
func (m *Module) Emitter() *Service {
	return m.service
}

// Outbox exposes the outbox repository to the scheduler's dispatcher.
func (m *Module) Outbox() *outbox.Repository {
	return m.outbox
}

// RegisterRoutes mounts the dashboard feed routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
