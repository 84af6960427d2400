package settings

import (
	"time"

	apphttp "sales_portal_backend/internal/http"
	"sales_portal_backend/platform/httpkit"
	"sales_portal_backend/platform/logger"
	"sales_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the automation settings bounded context.
type Module struct {
	service *Service
	handler *Handler
}

// ModuleOptions carries the shared infrastructure the module needs.
type ModuleOptions struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	CacheTTL time.Duration
	Val      *validator.Validator
	Log      *logger.Logger
}

// NewModule creates the settings module. Redis is optional; without it every
// read goes to the repository.
func NewModule(opts ModuleOptions) *Module {
	var cache *Cache
	if opts.Redis != nil {
		cache = NewCache(opts.Redis, opts.CacheTTL, opts.Log)
	}

	service := NewService(NewRepository(opts.Pool), cache, opts.Log)

	return &Module{
		service: service,
		handler: NewHandler(service, opts.Val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "settings"
}

// Service exposes the settings provider to other modules.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the settings routes. Both read and patch are
// admin-only.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/settings")
	group.Use(httpkit.RequireRole("admin"))
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
