// Package handler exposes the leads API over gin.
package handler

import (
	"net/http"
	"strconv"

	"sales_portal_backend/internal/leads/domain"
	"sales_portal_backend/internal/leads/repository"
	"sales_portal_backend/internal/leads/service"
	"sales_portal_backend/internal/leads/transport"
	"sales_portal_backend/platform/httpkit"
	"sales_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *service.Service
	val     *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{service: svc, val: val}
}

// RegisterRoutes mounts the leads routes on the given group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.PUT("/:id", h.update)
	group.POST("/:id/transition", h.transition)
	group.GET("/:id/history", h.history)
}

func (h *Handler) create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	assignedTo, ok := parseOptionalUUID(c, req.AssignedTo)
	if !ok {
		return
	}

	result, err := h.service.Create(c.Request.Context(), service.CreateParams{
		CompanyName:     req.CompanyName,
		ContactName:     req.ContactName,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
		Source:          req.Source,
		EstimatedBudget: req.EstimatedBudget,
		Priority:        domain.Priority(req.Priority),
		Notes:           req.Notes,
		AssignedTo:      assignedTo,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{
		"lead":       transport.FromLead(result.Lead),
		"duplicates": transport.FromLeads(result.Duplicates),
	})
}

func (h *Handler) list(c *gin.Context) {
	params := repository.ListParams{
		Search: c.Query("search"),
	}

	if value := c.Query("status"); value != "" {
		status := domain.Status(value)
		if !status.IsKnown() {
			httpkit.Error(c, http.StatusBadRequest, "unknown status filter", nil)
			return
		}
		params.Status = &status
	}
	if value := c.Query("assignedTo"); value != "" {
		id, err := uuid.Parse(value)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid assignedTo filter", nil)
			return
		}
		params.AssignedTo = &id
	}
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	leads, total, err := h.service.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"leads": transport.FromLeads(leads),
		"total": total,
	})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.service.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	raw := map[string]any{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	req, err := bindUpdateRequest(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.val.Struct(req.dto); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	lead, err := h.service.Update(c.Request.Context(), id, req.params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) transition(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "status is required", nil)
		return
	}

	var actor *uuid.UUID
	if identity := httpkit.GetIdentity(c); identity.IsAuthenticated() {
		userID := identity.UserID()
		actor = &userID
	}

	lead, err := h.service.Transition(c.Request.Context(), id, domain.Status(req.Status), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) history(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"history": transport.FromHistory(entries)})
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(c *gin.Context, value *string) (*uuid.UUID, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid assignedTo", nil)
		return nil, false
	}
	return &id, true
}
