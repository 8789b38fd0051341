package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a threaded comment on a media item. Threading is one level
// deep: replies to replies attach to the original parent.
type Comment struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`

	UserID  string `gorm:"not null;index;type:uuid" json:"user_id"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MediaID string `gorm:"not null;index;type:uuid" json:"media_id"`

	ParentID *string `gorm:"index;type:uuid" json:"parent_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Message is one persisted chat message between two users. Delivery over
// the WebSocket hub is best-effort; this row is the source of truth.
type Message struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SenderID   string `gorm:"not null;index;type:uuid" json:"sender_id"`
	ReceiverID string `gorm:"not null;index;type:uuid" json:"receiver_id"`
	Content    string `gorm:"type:text;not null" json:"content"`

	SentAt time.Time `gorm:"not null" json:"sent_at"`
}
