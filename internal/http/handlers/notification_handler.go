// README: Notification inbox handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/http/middleware"
	"gigmarket/internal/modules/notification"
	"gigmarket/internal/types"
)

type NotificationService interface {
	List(ctx context.Context, recipient types.ID, unreadOnly bool, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, id, recipient types.ID) error
}

type NotificationHandler struct {
	inbox NotificationService
}

func NewNotificationHandler(inbox NotificationService) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.inbox.List(c.Request.Context(), types.ID(middleware.CallerUID(c)), c.Query("unread") == "true", queryLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if list == nil {
		list = []notification.Notification{}
	}
	writeJSON(c, http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), types.ID(id), types.ID(middleware.CallerUID(c))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
