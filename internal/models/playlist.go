package models

import (
	"time"

	"gorm.io/gorm"
)

// PlaylistType distinguishes ordinary playlists, purchasable albums, and
// the per-user favourites container that backs the "liked" set.
type PlaylistType string

const (
	PlaylistStandard  PlaylistType = "playlist"
	PlaylistAlbum     PlaylistType = "album"
	PlaylistFavourite PlaylistType = "favourite"
)

// Valid reports whether t is a known playlist type.
func (t PlaylistType) Valid() bool {
	switch t {
	case PlaylistStandard, PlaylistAlbum, PlaylistFavourite:
		return true
	}
	return false
}

// Playlist is a media container. A user has at most one favourite-type
// playlist; a partial unique index on (owner_id) enforces it at the
// database level in addition to the find-or-create path.
type Playlist struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	Genre      Genre  `gorm:"type:text" json:"genre"`
	ArtistName string `json:"artist_name"`
	ImageURL   string `json:"image_url"`

	OwnerID string `gorm:"not null;index;type:uuid" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	Type PlaylistType `gorm:"type:text;not null" json:"type"`

	// PriceCents applies to album-type playlists only; nil means free.
	PriceCents *int64 `json:"price_cents"`

	LikesCount    int `gorm:"default:0" json:"likes_count"`
	CommentsCount int `gorm:"default:0" json:"comments_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PlaylistItem is the membership row. The composite primary key makes
// duplicate membership impossible at the schema level.
type PlaylistItem struct {
	PlaylistID string `gorm:"primaryKey;type:uuid" json:"playlist_id"`
	MediaID    string `gorm:"primaryKey;type:uuid" json:"media_id"`
	Position   int    `json:"position"`

	Media *Media `gorm:"foreignKey:MediaID" json:"media,omitempty"`
}
