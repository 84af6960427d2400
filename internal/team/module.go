package team

import (
	apphttp "sales_portal_backend/internal/http"
	"sales_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module exposes the roster read model over HTTP.
type Module struct {
	repo *Repository
}

func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: New(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "team"
}

// Repository exposes the roster to other modules (assignment, escalation).
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts the team routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/team", m.list)
}

type memberResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	Active bool      `json:"active"`
}

func (m *Module) list(c *gin.Context) {
	people, err := m.repo.ListActiveSalespeople(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	members := make([]memberResponse, 0, len(people))
	for _, p := range people {
		members = append(members, memberResponse{
			ID:     p.ID,
			Name:   p.Name,
			Email:  p.Email,
			Role:   p.Role,
			Active: p.Active,
		})
	}
	httpkit.OK(c, gin.H{"members": members})
}

var _ apphttp.Module = (*Module)(nil)
