package settings

import (
	"encoding/json"
	"net/http"

	"sales_portal_backend/platform/httpkit"
	"sales_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PatchRequest is one dotted-path settings update.
type PatchRequest struct {
	Path  string          `json:"path" validate:"required"`
	Value json.RawMessage `json:"value" validate:"required"`
}

// Handler exposes the settings endpoints.
type Handler struct {
	service *Service
	val     *validator.Validator
}

func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// RegisterRoutes mounts the settings routes on the given group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.get)
	group.PATCH("", h.patch)
}

func (h *Handler) get(c *gin.Context) {
	current, err := h.service.Get(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, current)
}

func (h *Handler) patch(c *gin.Context) {
	var req PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "path and value are required", nil)
		return
	}

	next, err := h.service.Patch(c.Request.Context(), req.Path, req.Value)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, next)
}
