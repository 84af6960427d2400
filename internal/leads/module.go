// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"sales_portal_backend/internal/events"
	apphttp "sales_portal_backend/internal/http"
	"sales_portal_backend/internal/leads/assign"
	"sales_portal_backend/internal/leads/duplicate"
	"sales_portal_backend/internal/leads/handler"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/leads/service"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/internal/team"
	"sales_portal_backend/platform/logger"
	"sales_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context implementing http.Module.
type Module struct {
	handler  *handler.Handler
	service  *service.Service
	repo     *repository.Repository
	assigner *assign.Engine
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, provider settings.Provider, roster *team.Repository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	detector := duplicate.NewDetector(repo)
	assigner := assign.NewEngine(roster)

	svc := service.New(repo, provider, detector, assigner, bus, log)

	return &Module{
		handler:  handler.New(svc, val),
		service:  svc,
		repo:     repo,
		assigner: assigner,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the lead service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the lead store to the sweep.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Assigner exposes the round-robin engine to the escalation resolver.
func (m *Module) Assigner() *assign.Engine {
	return m.assigner
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
