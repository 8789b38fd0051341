package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaType distinguishes songs from podcast episodes.
type MediaType string

const (
	MediaSong    MediaType = "song"
	MediaPodcast MediaType = "podcast"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == MediaSong || t == MediaPodcast
}

// Genre is the catalog genre taxonomy.
type Genre string

const (
	GenrePop       Genre = "pop"
	GenreRap       Genre = "rap"
	GenreJazz      Genre = "jazz"
	GenreClassical Genre = "classical"
)

// Valid reports whether g is a known genre. The empty genre is allowed.
func (g Genre) Valid() bool {
	switch g {
	case "", GenrePop, GenreRap, GenreJazz, GenreClassical:
		return true
	}
	return false
}

// MediaStatus is the moderation state of an uploaded asset.
type MediaStatus string

const (
	MediaPending  MediaStatus = "pending"
	MediaApproved MediaStatus = "approved"
	MediaRejected MediaStatus = "rejected"
	MediaReported MediaStatus = "reported"
)

// Valid reports whether s is a known moderation status.
func (s MediaStatus) Valid() bool {
	switch s {
	case MediaPending, MediaApproved, MediaRejected, MediaReported:
		return true
	}
	return false
}

// Media is one uploaded audio asset, owned by exactly one creator.
type Media struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	ArtistName string `json:"artist_name"`

	ImageURL string  `json:"image_url"`
	AudioURL string  `json:"audio_url"`
	Duration float64 `json:"duration"` // seconds

	Description string `gorm:"type:text" json:"description"`
	Lyrics      string `gorm:"type:text" json:"lyrics"`

	Type  MediaType `gorm:"type:text;not null" json:"media_type"`
	Genre Genre     `gorm:"type:text" json:"genre"`

	// Engagement counters. LikesCount and CommentsCount are recomputed
	// from favourite membership and comment rows; ReportsCount follows
	// accepted reports and never goes below zero.
	LikesCount    int `gorm:"default:0" json:"likes_count"`
	CommentsCount int `gorm:"default:0" json:"comments_count"`
	ReportsCount  int `gorm:"default:0" json:"reports_count"`

	// PriceCents is nil for free media.
	PriceCents *int64 `json:"price_cents"`

	CreatedBy  string  `gorm:"not null;index;type:uuid" json:"created_by"`
	Creator    *User   `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	ApprovedBy *string `gorm:"type:uuid" json:"approved_by"`

	Status MediaStatus `gorm:"type:text;not null;default:pending" json:"status"`

	// Moderator note recorded when an upload is rejected.
	RejectionNote string `gorm:"type:text" json:"rejection_note,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName pins the table to "media" rather than the pluralized default.
func (Media) TableName() string { return "media" }

// Play records one listen event, used by charts and the dashboard.
type Play struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"not null;index;type:uuid" json:"user_id"`
	MediaID   string    `gorm:"not null;index;type:uuid" json:"media_id"`
	CreatedAt time.Time `json:"created_at"`
}
