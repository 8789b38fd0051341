package websocket

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/models"
	"gorm.io/gorm"
)

const maxChatContentLen = 4000

// RegisterChatHandler wires the chat_message handler onto the hub.
// A message is persisted first, then delivered to the recipient's open
// connections only; the sender gets an acknowledgment instead of an echo
// of everyone's traffic.
func RegisterChatHandler(hub *Hub) {
	hub.RegisterHandler(MessageTypeChatMessage, func(client *Client, message *Message) error {
		var payload ChatSendPayload
		if err := message.ParsePayload(&payload); err != nil {
			client.SendError("invalid_payload", "chat_message payload malformed")
			return nil
		}

		payload.Content = strings.TrimSpace(payload.Content)
		if payload.ReceiverID == "" || payload.Content == "" {
			client.SendError("invalid_payload", "receiver_id and content are required")
			return nil
		}
		if payload.ReceiverID == client.UserID {
			client.SendError("invalid_receiver", "cannot message yourself")
			return nil
		}
		if len(payload.Content) > maxChatContentLen {
			client.SendError("content_too_long", fmt.Sprintf("content exceeds %d characters", maxChatContentLen))
			return nil
		}

		var receiver models.User
		err := database.DB.Select("id", "status").First(&receiver, "id = ?", payload.ReceiverID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			client.SendError("receiver_not_found", "recipient does not exist")
			return nil
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if receiver.Status == models.UserBanned {
			client.SendError("receiver_unavailable", "recipient cannot receive messages")
			return nil
		}

		// The row is the source of truth; delivery is best-effort on top.
		now := time.Now().UTC()
		row := models.Message{
			SenderID:   client.UserID,
			ReceiverID: payload.ReceiverID,
			Content:    payload.Content,
			SentAt:     now,
		}
		if err := database.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to persist message: %w", err)
		}

		delivered := hub.DeliverToUser(payload.ReceiverID, NewMessage(MessageTypeChatMessage, ChatMessagePayload{
			MessageID:  row.ID,
			SenderID:   client.UserID,
			SenderName: client.FullName,
			ReceiverID: payload.ReceiverID,
			Content:    payload.Content,
			SentAt:     now.UnixMilli(),
		}))

		ack := NewReply(message, MessageTypeChatAck, ChatAckPayload{
			MessageID:  row.ID,
			ReceiverID: payload.ReceiverID,
			Delivered:  delivered,
			SentAt:     now.UnixMilli(),
		})
		return client.Send(ack)
	})
}
