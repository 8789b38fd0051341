package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/notify"
	"github.com/melodix/backend/internal/util"
)

// ListNotifications returns the caller's notifications, newest first
// GET /api/v1/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))
	unreadOnly := c.Query("unread") == "true"

	list, err := h.notify.List(userID, unreadOnly, limit, offset)
	if err != nil {
		util.RespondInternalError(c, "failed to list notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list)})
}

// UnreadNotificationCount returns the caller's unread badge count
// GET /api/v1/notifications/unread-count
func (h *Handlers) UnreadNotificationCount(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	count, err := h.notify.UnreadCount(userID)
	if err != nil {
		util.RespondInternalError(c, "failed to count notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkNotificationRead marks one of the caller's notifications as read
// PUT /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	err := h.notify.MarkRead(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, notify.ErrNotificationNotFound) {
			util.RespondNotFound(c, "notification")
			return
		}
		util.RespondInternalError(c, "failed to mark notification read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// MarkAllNotificationsRead clears the caller's unread set
// PUT /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.notify.MarkAllRead(userID); err != nil {
		util.RespondInternalError(c, "failed to mark notifications read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// DeleteNotification removes one of the caller's notifications
// DELETE /api/v1/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	err := h.notify.Delete(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, notify.ErrNotificationNotFound) {
			util.RespondNotFound(c, "notification")
			return
		}
		util.RespondInternalError(c, "failed to delete notification")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// BroadcastNotification sends a system notification to every active user
// POST /api/v1/admin/notifications/broadcast
func (h *Handlers) BroadcastNotification(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		util.RespondValidationError(c, "content", "content is required")
		return
	}

	if err := h.notify.Broadcast(req.Content); err != nil {
		util.RespondInternalError(c, "failed to broadcast notification")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "broadcast"})
}
