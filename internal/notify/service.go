package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	ws "github.com/melodix/backend/internal/websocket"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Service persists notifications and pushes them over the WebSocket hub.
// The hub may be nil in tests; persistence alone is the contract.
type Service struct {
	hub *ws.Hub
}

// NewService creates a notification service
func NewService(hub *ws.Hub) *Service {
	return &Service{hub: hub}
}

// Item describes the entity a notification is about
type Item struct {
	RelatedItemID   string
	RelatedItemType string
	Action          string
}

// Notify persists a notification for one receiver and pushes it if the
// receiver is connected.
func (s *Service) Notify(receiverID string, senderID *string, notifType models.NotificationType, content string, items ...Item) (*models.Notification, error) {
	notification := models.Notification{
		ReceiverID: receiverID,
		SenderID:   senderID,
		Content:    content,
		Type:       notifType,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notification).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		for _, item := range items {
			itemID := item.RelatedItemID
			row := models.NotificationItem{
				NotificationID:  notification.ID,
				RelatedItemType: item.RelatedItemType,
				Action:          item.Action,
			}
			if itemID != "" {
				row.RelatedItemID = &itemID
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create notification item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.push(&notification)
	return &notification, nil
}

// NotifyFollowers fans a notification out to everyone following the user
func (s *Service) NotifyFollowers(userID string, notifType models.NotificationType, content string, items ...Item) error {
	var followerIDs []string
	err := database.DB.Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &followerIDs).Error
	if err != nil {
		return fmt.Errorf("failed to load followers: %w", err)
	}

	sender := userID
	for _, followerID := range followerIDs {
		if _, err := s.Notify(followerID, &sender, notifType, content, items...); err != nil {
			logger.WarnWithFields("failed to notify follower", err)
		}
	}
	return nil
}

// Broadcast stores a system notification for every active user and pushes
// a single broadcast frame to all connected clients.
func (s *Service) Broadcast(content string) error {
	var userIDs []string
	err := database.DB.Model(&models.User{}).
		Where("status = ?", models.UserActive).
		Pluck("id", &userIDs).Error
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	rows := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.Notification{
			ReceiverID: id,
			Content:    content,
			Type:       models.NotifySystem,
		})
	}
	if len(rows) > 0 {
		if err := database.DB.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to store notifications: %w", err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(ws.NewMessage(ws.MessageTypeNotification, ws.NotificationPayload{
			Type:      string(models.NotifySystem),
			Content:   content,
			CreatedAt: time.Now().UnixMilli(),
		}))
	}
	return nil
}

func (s *Service) push(n *models.Notification) {
	if s.hub == nil {
		return
	}

	payload := ws.NotificationPayload{
		ID:        n.ID,
		Type:      string(n.Type),
		Content:   n.Content,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UnixMilli(),
	}
	if n.SenderID != nil {
		payload.SenderID = *n.SenderID
	}
	s.hub.SendToUser(n.ReceiverID, ws.NewMessage(ws.MessageTypeNotification, payload))

	if count, err := s.UnreadCount(n.ReceiverID); err == nil {
		s.hub.SendToUser(n.ReceiverID, ws.NewMessage(ws.MessageTypeNotificationCount, ws.NotificationCountPayload{
			UnreadCount: count,
			Timestamp:   time.Now().UnixMilli(),
		}))
	}
}

// List returns the receiver's notifications, newest first
func (s *Service) List(receiverID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	q := database.DB.Preload("Items").Preload("Sender").
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").Limit(limit).Offset(offset)
	if unreadOnly {
		q = q.Where("is_read = false")
	}
	var list []models.Notification
	err := q.Find(&list).Error
	return list, err
}

// UnreadCount returns the receiver's unread notification count
func (s *Service) UnreadCount(receiverID string) (int64, error) {
	var count int64
	err := database.DB.Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = false", receiverID).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification as read, scoped to its receiver
func (s *Service) MarkRead(receiverID, notificationID string) error {
	res := database.DB.Model(&models.Notification{}).
		Where("id = ? AND receiver_id = ?", notificationID, receiverID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks all of the receiver's notifications as read
func (s *Service) MarkAllRead(receiverID string) error {
	return database.DB.Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = false", receiverID).
		Update("is_read", true).Error
}

// Delete removes one of the receiver's notifications and its items
func (s *Service) Delete(receiverID, notificationID string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND receiver_id = ?", notificationID, receiverID).
			Delete(&models.Notification{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotificationNotFound
		}
		return tx.Where("notification_id = ?", notificationID).
			Delete(&models.NotificationItem{}).Error
	})
}
