package notification

import (
	"net/http"
	"time"

	"sales_portal_backend/internal/notification/inapp"
	"sales_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the dashboard feed endpoints.
type Handler struct {
	feed *inapp.Repository
}

func NewHandler(feed *inapp.Repository) *Handler {
	return &Handler{feed: feed}
}

// RegisterRoutes mounts the feed routes on the given group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.list)
	group.POST("/:id/read", h.markRead)
}

type feedItem struct {
	ID        uuid.UUID  `json:"id"`
	Category  string     `json:"category"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	LeadID    *uuid.UUID `json:"leadId,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (h *Handler) list(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	items, err := h.feed.ListByRecipient(c.Request.Context(), identity.UserID(), unreadOnly, 50)
	if httpkit.HandleError(c, err) {
		return
	}

	feed := make([]feedItem, 0, len(items))
	for _, n := range items {
		feed = append(feed, feedItem{
			ID:        n.ID,
			Category:  n.Category,
			Title:     n.Title,
			Body:      n.Body,
			LeadID:    n.LeadID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"notifications": feed})
}

func (h *Handler) markRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if err := h.feed.MarkRead(c.Request.Context(), id, identity.UserID()); err != nil {
		if err == inapp.ErrNotFound {
			httpkit.Error(c, http.StatusNotFound, "notification not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"read": true})
}
