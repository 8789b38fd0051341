package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/util"
	ws "github.com/melodix/backend/internal/websocket"
	"gorm.io/gorm"
)

// SendChatMessage is the REST fallback for clients without an open
// WebSocket. The row is persisted first; live delivery is best-effort.
// POST /api/v1/chat/:userID/messages
func (h *Handlers) SendChatMessage(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	receiverID := c.Param("userID")

	if receiverID == currentUser.ID {
		util.RespondValidationError(c, "userID", "cannot message yourself")
		return
	}

	var receiver models.User
	err := database.DB.Select("id", "status").First(&receiver, "id = ?", receiverID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch user")
		return
	}
	if receiver.Status == models.UserBanned {
		util.RespondNotFound(c, "user")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > 4000 {
		util.RespondValidationError(c, "content", "must be between 1 and 4000 characters")
		return
	}

	message := models.Message{
		SenderID:   currentUser.ID,
		ReceiverID: receiverID,
		Content:    req.Content,
		SentAt:     time.Now().UTC(),
	}
	if err := database.DB.Create(&message).Error; err != nil {
		util.RespondInternalError(c, "failed to store message")
		return
	}

	delivered := false
	if h.wsHandler != nil {
		frame := ws.NewMessage(ws.MessageTypeChatMessage, ws.ChatMessagePayload{
			MessageID:  message.ID,
			SenderID:   currentUser.ID,
			SenderName: currentUser.FullName,
			ReceiverID: receiverID,
			Content:    message.Content,
			SentAt:     message.SentAt.UnixMilli(),
		})
		delivered = h.wsHandler.Hub().DeliverToUser(receiverID, frame)
	}

	c.JSON(http.StatusCreated, gin.H{"message": message, "delivered": delivered})
}

// GetConversation returns the message history between the caller and :userID,
// newest first
// GET /api/v1/chat/:userID/messages
func (h *Handlers) GetConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	otherID := c.Param("userID")
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	q := database.DB.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, otherID, otherID, userID)

	// Cursor on sent_at for infinite scroll; page/limit still works without it.
	if before := c.Query("before"); before != "" {
		ts, err := time.Parse(time.RFC3339, before)
		if err != nil {
			util.RespondValidationError(c, "before", "must be an RFC 3339 timestamp")
			return
		}
		q = q.Where("sent_at < ?", ts)
	}

	var messages []models.Message
	if err := q.Order("sent_at DESC").Limit(limit).Offset(offset).Find(&messages).Error; err != nil {
		util.RespondInternalError(c, "failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// ListConversations returns the caller's chat partners with the most
// recent message for each, newest conversation first
// GET /api/v1/chat
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	type conversation struct {
		PartnerID   string       `json:"partner_id"`
		Partner     *models.User `json:"partner,omitempty"`
		LastMessage string       `json:"last_message"`
		LastSentAt  time.Time    `json:"last_sent_at"`
	}

	var rows []conversation
	err := database.DB.Raw(`
		SELECT DISTINCT ON (partner_id) partner_id, content AS last_message, sent_at AS last_sent_at
		FROM (
			SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id,
			       content, sent_at
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
		) m
		ORDER BY partner_id, sent_at DESC`, userID, userID, userID).Scan(&rows).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list conversations")
		return
	}

	if len(rows) > 0 {
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.PartnerID)
		}
		var partners []models.User
		if err := database.DB.Where("id IN ?", ids).Find(&partners).Error; err != nil {
			util.RespondInternalError(c, "failed to list conversations")
			return
		}
		byID := make(map[string]*models.User, len(partners))
		for i := range partners {
			byID[partners[i].ID] = &partners[i]
		}
		for i := range rows {
			rows[i].Partner = byID[rows[i].PartnerID]
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].LastSentAt.After(rows[j].LastSentAt)
	})

	c.JSON(http.StatusOK, gin.H{"conversations": rows, "count": len(rows)})
}
