package sweep

import (
	"errors"
	"net/http"

	apphttp "sales_portal_backend/internal/http"
	"sales_portal_backend/internal/leads/transport"
	"sales_portal_backend/internal/settings"
	"sales_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes the alert dashboard read model and the manual sweep trigger.
type Module struct {
	sweeper  *Sweeper
	settings settings.Provider
}

func NewModule(sweeper *Sweeper, provider settings.Provider) *Module {
	return &Module{sweeper: sweeper, settings: provider}
}

func (m *Module) Name() string {
	return "sweep"
}

// Sweeper exposes the orchestrator to the scheduler worker.
func (m *Module) Sweeper() *Sweeper {
	return m.sweeper
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/alerts", m.getAlerts)

	admin := ctx.Protected.Group("/sweep")
	admin.Use(httpkit.RequireRole("admin"))
	admin.POST("/run", m.runNow)
}

// getAlerts recomputes the watcher predicates over current data. Nothing is
// read from a stored alert table, so a lead touched a second ago drops out of
// the response immediately.
func (m *Module) getAlerts(c *gin.Context) {
	ctx := c.Request.Context()

	cfg, err := m.settings.Get(ctx)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	open, err := m.sweeper.leads.ListOpen(ctx)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	now := m.sweeper.now()
	cold := make([]transport.LeadResponse, 0)
	stale := make([]transport.LeadResponse, 0)
	overdue := make([]transport.LeadResponse, 0)

	for _, lead := range open {
		for _, alert := range Evaluate(lead, cfg, now) {
			switch alert.Category {
			case CategoryCold:
				cold = append(cold, transport.FromLead(lead))
			case CategoryStale:
				stale = append(stale, transport.FromLead(lead))
			case CategoryOverdue:
				overdue = append(overdue, transport.FromLead(lead))
			}
		}
	}

	httpkit.OK(c, gin.H{
		"coldLeads":    cold,
		"staleLeads":   stale,
		"overdueLeads": overdue,
	})
}

// runNow triggers a sweep synchronously and reports its counts. A run already
// holding the lock yields 409 so the caller knows nothing was recomputed.
func (m *Module) runNow(c *gin.Context) {
	result, err := m.sweeper.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			httpkit.Error(c, http.StatusConflict, "a sweep is already running", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, result)
}

var _ apphttp.Module = (*Module)(nil)
