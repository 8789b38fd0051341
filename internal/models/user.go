package models

import (
	"time"

	"gorm.io/gorm"
)

// Role controls what a user may do. VIP is a paid upgrade of the regular
// user role tied to a subscription window.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleUser  Role = "user"
	RoleVIP   Role = "vip_user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleUser, RoleVIP:
		return true
	}
	return false
}

// Privileged reports whether the role may moderate content.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleStaff
}

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserBanned   UserStatus = "banned"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserBanned:
		return true
	}
	return false
}

// User is a platform account. PasswordHash is nil for OAuth-only accounts.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	FullName string `gorm:"not null" json:"full_name"`

	PasswordHash *string `gorm:"type:text" json:"-"`
	GoogleID     *string `gorm:"uniqueIndex" json:"-"`

	AvatarURL string     `json:"avatar_url"`
	Birthday  *time.Time `json:"birthday"`
	Address   string     `json:"address"`

	Role   Role       `gorm:"type:text;not null;default:user" json:"role"`
	Status UserStatus `gorm:"type:text;not null;default:active" json:"status"`

	// VIP subscription window. IsVIP is the authoritative check; the role
	// alone is not enough once the window lapses.
	VIPStartsAt *time.Time `json:"vip_starts_at"`
	VIPEndsAt   *time.Time `json:"vip_ends_at"`

	// Payout identity for seller disbursements.
	PayoutAccountID string `json:"payout_account_id"`
	PayoutEmail     string `json:"payout_email"`

	// Number of this user's media currently in reported status. Recomputed
	// by the moderation workflow, never incremented blindly.
	ReportCount int `gorm:"default:0" json:"report_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsVIP reports whether the user holds an unexpired VIP subscription.
func (u *User) IsVIP() bool {
	return u.Role == RoleVIP && u.VIPEndsAt != nil && time.Now().Before(*u.VIPEndsAt)
}

// CanSell reports whether the user may attach a price to uploads.
func (u *User) CanSell() bool {
	return u.Role.Privileged() || u.IsVIP()
}

// Follow links a follower to the account they follow.
type Follow struct {
	FollowerID string    `gorm:"primaryKey;type:uuid" json:"follower_id"`
	FolloweeID string    `gorm:"primaryKey;type:uuid" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower *User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Followee *User `gorm:"foreignKey:FolloweeID" json:"followee,omitempty"`
}
