package models

import "time"

// NotificationType categorizes what triggered a notification.
type NotificationType string

const (
	NotifyFollow  NotificationType = "follow"
	NotifyLike    NotificationType = "like"
	NotifyComment NotificationType = "comment"
	NotifyReport  NotificationType = "report"
	NotifyPayment NotificationType = "payment"
	NotifySystem  NotificationType = "system"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyFollow, NotifyLike, NotifyComment, NotifyReport, NotifyPayment, NotifySystem:
		return true
	}
	return false
}

// Notification is one fan-out record for one receiver. SenderID is nil
// for system announcements.
type Notification struct {
	ID         string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReceiverID string  `gorm:"not null;index;type:uuid" json:"receiver_id"`
	SenderID   *string `gorm:"type:uuid" json:"sender_id"`
	Sender     *User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	Content string           `gorm:"type:text;not null" json:"content"`
	Type    NotificationType `gorm:"type:text;not null" json:"notification_type"`
	IsRead  bool             `gorm:"default:false" json:"is_read"`

	Items []NotificationItem `gorm:"foreignKey:NotificationID" json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NotificationItem links a notification to the entity it is about.
type NotificationItem struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	NotificationID string `gorm:"not null;index;type:uuid" json:"notification_id"`

	RelatedItemID   *string `gorm:"type:uuid" json:"related_item_id"`
	RelatedItemType string  `gorm:"not null" json:"related_item_type"`
	Action          string  `gorm:"not null" json:"action"`

	CreatedAt time.Time `json:"created_at"`
}
