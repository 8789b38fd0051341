package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreatePlaylist creates a standard playlist or, for sellers, an album
// POST /api/v1/playlists
func (h *Handlers) CreatePlaylist(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Name       string              `json:"name" binding:"required,min=1,max=200"`
		Type       models.PlaylistType `json:"type"`
		Genre      models.Genre        `json:"genre"`
		ArtistName string              `json:"artist_name"`
		ImageURL   string              `json:"image_url"`
		PriceCents *int64              `json:"price_cents" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.Type == "" {
		req.Type = models.PlaylistStandard
	}
	switch req.Type {
	case models.PlaylistStandard:
		req.PriceCents = nil
	case models.PlaylistAlbum:
		if req.PriceCents != nil && *req.PriceCents > 0 && !currentUser.CanSell() {
			util.RespondForbidden(c, "a VIP subscription is required to sell albums")
			return
		}
	default:
		// Favourite playlists are created lazily by the like path, never directly.
		util.RespondValidationError(c, "type", "must be playlist or album")
		return
	}
	if !req.Genre.Valid() {
		util.RespondValidationError(c, "genre", "unknown genre")
		return
	}

	playlist := models.Playlist{
		Name:       req.Name,
		Type:       req.Type,
		Genre:      req.Genre,
		ArtistName: req.ArtistName,
		ImageURL:   req.ImageURL,
		PriceCents: req.PriceCents,
		OwnerID:    currentUser.ID,
	}
	if err := database.DB.Create(&playlist).Error; err != nil {
		util.RespondInternalError(c, "failed to create playlist")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"playlist": playlist})
}

// ListPlaylists returns the caller's playlists, or another user's
// non-favourite playlists when user_id is given
// GET /api/v1/playlists
func (h *Handlers) ListPlaylists(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	q := database.DB.Model(&models.Playlist{})
	if target := c.Query("user_id"); target != "" && target != userID {
		q = q.Where("owner_id = ? AND type <> ?", target, models.PlaylistFavourite)
	} else {
		q = q.Where("owner_id = ?", userID)
	}
	if playlistType := c.Query("type"); playlistType != "" {
		q = q.Where("type = ?", playlistType)
	}

	var list []models.Playlist
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		util.RespondInternalError(c, "failed to list playlists")
		return
	}

	c.JSON(http.StatusOK, gin.H{"playlists": list, "count": len(list)})
}

// GetPlaylist returns one playlist with its items in position order
// GET /api/v1/playlists/:id
func (h *Handlers) GetPlaylist(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var playlist models.Playlist
	err := database.DB.Preload("Owner").First(&playlist, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "playlist")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch playlist")
		return
	}

	// The favourites container is private to its owner.
	if playlist.Type == models.PlaylistFavourite &&
		playlist.OwnerID != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondNotFound(c, "playlist")
		return
	}

	var items []models.PlaylistItem
	err = database.DB.Preload("Media").
		Where("playlist_id = ?", playlist.ID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		util.RespondInternalError(c, "failed to fetch playlist items")
		return
	}

	c.JSON(http.StatusOK, gin.H{"playlist": playlist, "items": items})
}

// UpdatePlaylist edits playlist metadata
// PUT /api/v1/playlists/:id
func (h *Handlers) UpdatePlaylist(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	playlist, ok := h.ownedPlaylist(c, currentUser)
	if !ok {
		return
	}
	if playlist.Type == models.PlaylistFavourite {
		util.RespondInvalidState(c, "the favourites playlist cannot be edited")
		return
	}

	var req struct {
		Name       *string       `json:"name" binding:"omitempty,min=1,max=200"`
		Genre      *models.Genre `json:"genre"`
		ArtistName *string       `json:"artist_name"`
		ImageURL   *string       `json:"image_url"`
		PriceCents *int64        `json:"price_cents" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.Name != nil {
		playlist.Name = *req.Name
	}
	if req.Genre != nil {
		if !req.Genre.Valid() {
			util.RespondValidationError(c, "genre", "unknown genre")
			return
		}
		playlist.Genre = *req.Genre
	}
	if req.ArtistName != nil {
		playlist.ArtistName = *req.ArtistName
	}
	if req.ImageURL != nil {
		playlist.ImageURL = *req.ImageURL
	}
	if req.PriceCents != nil {
		if playlist.Type != models.PlaylistAlbum {
			util.RespondValidationError(c, "price_cents", "only albums can be priced")
			return
		}
		if *req.PriceCents > 0 && !currentUser.CanSell() {
			util.RespondForbidden(c, "a VIP subscription is required to sell albums")
			return
		}
		if *req.PriceCents == 0 {
			playlist.PriceCents = nil
		} else {
			playlist.PriceCents = req.PriceCents
		}
	}

	if err := database.DB.Save(playlist).Error; err != nil {
		util.RespondInternalError(c, "failed to update playlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{"playlist": playlist})
}

// DeletePlaylist removes a playlist and its membership rows
// DELETE /api/v1/playlists/:id
func (h *Handlers) DeletePlaylist(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	playlist, ok := h.ownedPlaylist(c, currentUser)
	if !ok {
		return
	}
	if playlist.Type == models.PlaylistFavourite {
		util.RespondInvalidState(c, "the favourites playlist cannot be deleted")
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", playlist.ID).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(playlist).Error
	})
	if err != nil {
		util.RespondInternalError(c, "failed to delete playlist")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// AddPlaylistItem appends an approved media item to a playlist
// POST /api/v1/playlists/:id/items
func (h *Handlers) AddPlaylistItem(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	playlist, ok := h.ownedPlaylist(c, currentUser)
	if !ok {
		return
	}

	var req struct {
		MediaID string `json:"media_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	var media models.Media
	err := database.DB.Select("id", "status", "type").First(&media, "id = ?", req.MediaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && media.Status != models.MediaApproved) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PlaylistItem{}).
			Where("playlist_id = ?", playlist.ID).Count(&count).Error; err != nil {
			return err
		}
		item := models.PlaylistItem{
			PlaylistID: playlist.ID,
			MediaID:    media.ID,
			Position:   int(count),
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error
	})
	if err != nil {
		util.RespondInternalError(c, "failed to add item")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

// RemovePlaylistItem drops one media item from a playlist
// DELETE /api/v1/playlists/:id/items/:mediaID
func (h *Handlers) RemovePlaylistItem(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	playlist, ok := h.ownedPlaylist(c, currentUser)
	if !ok {
		return
	}

	res := database.DB.Where("playlist_id = ? AND media_id = ?", playlist.ID, c.Param("mediaID")).
		Delete(&models.PlaylistItem{})
	if res.Error != nil {
		util.RespondInternalError(c, "failed to remove item")
		return
	}
	if res.RowsAffected == 0 {
		util.RespondNotFound(c, "playlist item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// LikeMedia adds a media item to the caller's favourites playlist,
// creating the playlist on first use
// POST /api/v1/media/:id/like
func (h *Handlers) LikeMedia(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var media models.Media
	err := database.DB.Select("id", "name", "status", "created_by").
		First(&media, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && media.Status != models.MediaApproved) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}

	var liked bool
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		favourites, err := favouritePlaylistTx(tx, currentUser.ID)
		if err != nil {
			return err
		}
		item := models.PlaylistItem{PlaylistID: favourites.ID, MediaID: media.ID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item)
		if res.Error != nil {
			return res.Error
		}
		liked = res.RowsAffected > 0
		if liked {
			return recomputeLikesTx(tx, media.ID)
		}
		return nil
	})
	if err != nil {
		logger.ErrorWithFields("like failed", err)
		util.RespondInternalError(c, "failed to like media")
		return
	}

	if liked && media.CreatedBy != currentUser.ID {
		content := currentUser.FullName + " liked \"" + media.Name + "\""
		if _, err := h.notify.Notify(media.CreatedBy, &currentUser.ID, models.NotifyLike, content,
			mediaNotifyItem(media.ID, "liked")); err != nil {
			logger.WarnWithFields("failed to notify creator of like", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "liked"})
}

// UnlikeMedia removes a media item from the caller's favourites
// DELETE /api/v1/media/:id/like
func (h *Handlers) UnlikeMedia(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	mediaID := c.Param("id")

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var favourites models.Playlist
		err := tx.Where("owner_id = ? AND type = ?", userID, models.PlaylistFavourite).
			First(&favourites).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		res := tx.Where("playlist_id = ? AND media_id = ?", favourites.ID, mediaID).
			Delete(&models.PlaylistItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return recomputeLikesTx(tx, mediaID)
		}
		return nil
	})
	if err != nil {
		util.RespondInternalError(c, "failed to unlike media")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unliked"})
}

// GetFavourites returns the caller's liked media
// GET /api/v1/media/favourites
func (h *Handlers) GetFavourites(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var favourites models.Playlist
	err := database.DB.Where("owner_id = ? AND type = ?", userID, models.PlaylistFavourite).
		First(&favourites).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, gin.H{"items": []models.PlaylistItem{}, "count": 0})
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch favourites")
		return
	}

	var items []models.PlaylistItem
	err = database.DB.Preload("Media").
		Where("playlist_id = ?", favourites.ID).
		Limit(limit).Offset(offset).
		Find(&items).Error
	if err != nil {
		util.RespondInternalError(c, "failed to fetch favourites")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// ownedPlaylist loads the playlist from the :id param and checks ownership.
// Staff may operate on any playlist.
func (h *Handlers) ownedPlaylist(c *gin.Context, currentUser *models.User) (*models.Playlist, bool) {
	var playlist models.Playlist
	err := database.DB.First(&playlist, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "playlist")
		return nil, false
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch playlist")
		return nil, false
	}
	if playlist.OwnerID != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondForbidden(c, "not your playlist")
		return nil, false
	}
	return &playlist, true
}

// favouritePlaylistTx finds or creates the caller's favourites container.
// The partial unique index on (owner_id) makes concurrent creation safe.
func favouritePlaylistTx(tx *gorm.DB, userID string) (*models.Playlist, error) {
	var favourites models.Playlist
	err := tx.Where("owner_id = ? AND type = ?", userID, models.PlaylistFavourite).
		First(&favourites).Error
	if err == nil {
		return &favourites, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	favourites = models.Playlist{
		Name:    "Favourites",
		Type:    models.PlaylistFavourite,
		OwnerID: userID,
	}
	// A concurrent first like can win the create on the unique favourite
	// index. DO NOTHING keeps the transaction alive; read the winner's
	// row instead of surfacing the conflict.
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&favourites)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		err := tx.Where("owner_id = ? AND type = ?", userID, models.PlaylistFavourite).
			First(&favourites).Error
		if err != nil {
			return nil, err
		}
	}
	return &favourites, nil
}

// recomputeLikesTx refreshes likes_count from favourite membership.
func recomputeLikesTx(tx *gorm.DB, mediaID string) error {
	return tx.Exec(`
		UPDATE media SET likes_count = (
			SELECT COUNT(*) FROM playlist_items pi
			JOIN playlists p ON p.id = pi.playlist_id
			WHERE pi.media_id = ? AND p.type = ? AND p.deleted_at IS NULL
		) WHERE id = ?`, mediaID, models.PlaylistFavourite, mediaID).Error
}
