package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/metrics"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/notify"
	"github.com/melodix/backend/internal/util"
	"gorm.io/gorm"
)

const maxAudioUploadBytes = 100 << 20 // 100MB
const maxImageUploadBytes = 10 << 20  // 10MB

// UploadMedia accepts a multipart audio upload and queues it for review
// POST /api/v1/media
func (h *Handlers) UploadMedia(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.uploader == nil {
		util.RespondInternalError(c, "storage not configured")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		util.RespondValidationError(c, "name", "name is required")
		return
	}

	mediaType := models.MediaType(c.DefaultPostForm("media_type", string(models.MediaSong)))
	if !mediaType.Valid() {
		util.RespondValidationError(c, "media_type", "must be song or podcast")
		return
	}

	genre := models.Genre(c.PostForm("genre"))
	if !genre.Valid() {
		util.RespondValidationError(c, "genre", "unknown genre")
		return
	}

	var priceCents *int64
	if priceStr := c.PostForm("price_cents"); priceStr != "" {
		price := util.ParseInt64(priceStr, -1)
		if price < 0 {
			util.RespondValidationError(c, "price_cents", "must be a non-negative integer")
			return
		}
		if price > 0 {
			if !currentUser.CanSell() {
				util.RespondForbidden(c, "a VIP subscription is required to sell media")
				return
			}
			priceCents = &price
		}
	}

	audioHeader, err := c.FormFile("audio")
	if err != nil {
		util.RespondValidationError(c, "audio", "audio file is required")
		return
	}
	if audioHeader.Size > maxAudioUploadBytes {
		util.RespondValidationError(c, "audio", "file too large")
		return
	}
	if !isValidAudioFile(audioHeader.Filename) {
		util.RespondValidationError(c, "audio", "unsupported audio format")
		return
	}

	audioData, err := readMultipartFile(audioHeader)
	if err != nil {
		util.RespondInternalError(c, "failed to read upload")
		return
	}

	audioResult, err := h.uploader.UploadAudio(c.Request.Context(), audioData, currentUser.ID, audioHeader.Filename)
	if err != nil {
		logger.ErrorWithFields("audio upload failed", err)
		util.RespondInternalError(c, "failed to store audio")
		return
	}

	imageURL := ""
	if imageHeader, err := c.FormFile("image"); err == nil {
		if imageHeader.Size > maxImageUploadBytes {
			util.RespondValidationError(c, "image", "file too large")
			return
		}
		imageData, err := readMultipartFile(imageHeader)
		if err != nil {
			util.RespondInternalError(c, "failed to read upload")
			return
		}
		imageResult, err := h.uploader.UploadImage(c.Request.Context(), imageData, currentUser.ID, imageHeader.Filename)
		if err != nil {
			logger.ErrorWithFields("image upload failed", err)
			util.RespondInternalError(c, "failed to store image")
			return
		}
		imageURL = imageResult.URL
	}

	row := models.Media{
		Name:        name,
		ArtistName:  c.DefaultPostForm("artist_name", currentUser.FullName),
		ImageURL:    imageURL,
		AudioURL:    audioResult.URL,
		Description: c.PostForm("description"),
		Lyrics:      c.PostForm("lyrics"),
		Type:        mediaType,
		Genre:       genre,
		PriceCents:  priceCents,
		CreatedBy:   currentUser.ID,
		Status:      models.MediaPending,
	}
	if durStr := c.PostForm("duration"); durStr != "" {
		row.Duration = util.ParseFloat(durStr, 0)
	}

	if err := database.DB.Create(&row).Error; err != nil {
		util.RespondInternalError(c, "failed to create media")
		return
	}

	logger.Log.Info("media uploaded",
		logger.WithUserID(currentUser.ID),
		logger.WithMediaID(row.ID),
	)
	c.JSON(http.StatusCreated, gin.H{"media": row})
}

// ListCatalog returns the approved catalog with filters and pagination
// GET /api/v1/media
func (h *Handlers) ListCatalog(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	q := database.DB.Preload("Creator").
		Where("status = ?", models.MediaApproved)

	if mediaType := c.Query("media_type"); mediaType != "" {
		q = q.Where("type = ?", mediaType)
	}
	if genre := c.Query("genre"); genre != "" {
		q = q.Where("genre = ?", genre)
	}
	if creator := c.Query("creator_id"); creator != "" {
		q = q.Where("created_by = ?", creator)
	}
	if search := c.Query("q"); search != "" {
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(artist_name) LIKE LOWER(?)",
			"%"+search+"%", "%"+search+"%")
	}

	switch c.DefaultQuery("sort", "newest") {
	case "popular":
		q = q.Order("likes_count DESC, created_at DESC")
	case "newest":
		q = q.Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var list []models.Media
	if err := q.Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		util.RespondInternalError(c, "failed to list media")
		return
	}

	userID := contextUserID(c)
	c.JSON(http.StatusOK, gin.H{"media": decorateMedia(userID, list), "count": len(list)})
}

// contextUserID is the non-failing variant for handlers that only use
// the caller's identity to decorate a response.
func contextUserID(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// decoratedMedia adds the caller's relationship to each catalog entry.
type decoratedMedia struct {
	models.Media
	Liked     bool `json:"liked"`
	Purchased bool `json:"purchased"`
}

// decorateMedia marks which of the given items the user has liked or
// bought, with one query per relation rather than one per item.
func decorateMedia(userID string, list []models.Media) []decoratedMedia {
	out := make([]decoratedMedia, 0, len(list))
	if len(list) == 0 {
		return out
	}

	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}

	liked := make(map[string]bool)
	purchased := make(map[string]bool)
	if userID != "" {
		var likedIDs []string
		database.DB.Model(&models.PlaylistItem{}).
			Joins("JOIN playlists p ON p.id = playlist_items.playlist_id").
			Where("p.owner_id = ? AND p.type = ? AND playlist_items.media_id IN ?",
				userID, models.PlaylistFavourite, ids).
			Pluck("playlist_items.media_id", &likedIDs)
		for _, id := range likedIDs {
			liked[id] = true
		}

		var boughtIDs []string
		database.DB.Model(&models.PaymentReceipt{}).
			Where("buyer_id = ? AND item_id IN ?", userID, ids).
			Pluck("item_id", &boughtIDs)
		for _, id := range boughtIDs {
			purchased[id] = true
		}
	}

	for _, m := range list {
		out = append(out, decoratedMedia{
			Media:     m,
			Liked:     liked[m.ID],
			Purchased: purchased[m.ID],
		})
	}
	return out
}

// GetMedia returns one media item. Pending and rejected items are only
// visible to their creator and to staff.
// GET /api/v1/media/:id
func (h *Handlers) GetMedia(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var media models.Media
	err := database.DB.Preload("Creator").First(&media, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}

	if media.Status != models.MediaApproved &&
		media.CreatedBy != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondNotFound(c, "media")
		return
	}

	entry := decorateMedia(currentUser.ID, []models.Media{media})[0]
	c.JSON(http.StatusOK, gin.H{"media": entry})
}

// Feed lists recent approved uploads from creators the user follows
// GET /api/v1/media/feed
func (h *Handlers) Feed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var list []models.Media
	err := database.DB.Preload("Creator").
		Where("status = ?", models.MediaApproved).
		Where("created_by IN (?)",
			database.DB.Model(&models.Follow{}).
				Select("followee_id").
				Where("follower_id = ?", userID)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	if err != nil {
		util.RespondInternalError(c, "failed to load feed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": decorateMedia(userID, list), "count": len(list)})
}

// PurchasedMedia lists items the user has bought
// GET /api/v1/media/purchased
func (h *Handlers) PurchasedMedia(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var list []models.Media
	err := database.DB.Preload("Creator").
		Where("id IN (?)",
			database.DB.Model(&models.PaymentReceipt{}).
				Select("item_id").
				Where("buyer_id = ? AND item_id IS NOT NULL", userID)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list purchases")
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": decorateMedia(userID, list), "count": len(list)})
}

// MyMedia lists the authenticated creator's uploads in every status
// GET /api/v1/media/mine
func (h *Handlers) MyMedia(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var list []models.Media
	err := database.DB.Where("created_by = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&list).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list media")
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": list, "count": len(list)})
}

// UpdateMedia edits metadata on the creator's own upload
// PUT /api/v1/media/:id
func (h *Handlers) UpdateMedia(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var media models.Media
	err := database.DB.First(&media, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}

	if media.CreatedBy != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondForbidden(c, "not your media")
		return
	}

	var req struct {
		Name        *string       `json:"name" binding:"omitempty,min=1,max=200"`
		ArtistName  *string       `json:"artist_name"`
		Description *string       `json:"description"`
		Lyrics      *string       `json:"lyrics"`
		Genre       *models.Genre `json:"genre"`
		PriceCents  *int64        `json:"price_cents" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.Name != nil {
		media.Name = *req.Name
	}
	if req.ArtistName != nil {
		media.ArtistName = *req.ArtistName
	}
	if req.Description != nil {
		media.Description = *req.Description
	}
	if req.Lyrics != nil {
		media.Lyrics = *req.Lyrics
	}
	if req.Genre != nil {
		if !req.Genre.Valid() {
			util.RespondValidationError(c, "genre", "unknown genre")
			return
		}
		media.Genre = *req.Genre
	}
	if req.PriceCents != nil {
		if *req.PriceCents > 0 && !currentUser.CanSell() {
			util.RespondForbidden(c, "a VIP subscription is required to sell media")
			return
		}
		if *req.PriceCents == 0 {
			media.PriceCents = nil
		} else {
			media.PriceCents = req.PriceCents
		}
	}

	if err := database.DB.Save(&media).Error; err != nil {
		util.RespondInternalError(c, "failed to update media")
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": media})
}

// DeleteMedia removes a media item and its dependent rows
// DELETE /api/v1/media/:id
func (h *Handlers) DeleteMedia(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var media models.Media
	err := database.DB.First(&media, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}

	if media.CreatedBy != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondForbidden(c, "not your media")
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("media_id = ?", media.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("media_id = ?", media.ID).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("media_id = ?", media.ID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		return tx.Delete(&media).Error
	})
	if err != nil {
		logger.ErrorWithFields("media delete failed", err)
		util.RespondInternalError(c, "failed to delete media")
		return
	}

	logger.Log.Info("media deleted",
		logger.WithUserID(currentUser.ID),
		logger.WithMediaID(media.ID),
	)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListPendingMedia returns the review queue for staff
// GET /api/v1/admin/media/pending
func (h *Handlers) ListPendingMedia(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var list []models.Media
	err := database.DB.Preload("Creator").
		Where("status = ?", models.MediaPending).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list pending media")
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": list, "count": len(list)})
}

// ReviewMedia approves or rejects a pending upload
// PUT /api/v1/admin/media/:id/review
func (h *Handlers) ReviewMedia(c *gin.Context) {
	reviewer, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	var media models.Media
	err := database.DB.First(&media, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}

	if media.Status != models.MediaPending {
		util.RespondInvalidState(c, "media is not pending review")
		return
	}

	if req.Approve {
		media.Status = models.MediaApproved
		media.RejectionNote = ""
	} else {
		if strings.TrimSpace(req.Note) == "" {
			util.RespondValidationError(c, "note", "a note is required when rejecting")
			return
		}
		media.Status = models.MediaRejected
		media.RejectionNote = req.Note
	}
	media.ApprovedBy = &reviewer.ID

	if err := database.DB.Save(&media).Error; err != nil {
		util.RespondInternalError(c, "failed to update media")
		return
	}

	// Tell the creator what happened
	content := "Your upload \"" + media.Name + "\" was approved"
	if !req.Approve {
		content = "Your upload \"" + media.Name + "\" was rejected: " + req.Note
	}
	if _, err := h.notify.Notify(media.CreatedBy, &reviewer.ID, models.NotifySystem, content,
		mediaNotifyItem(media.ID, "reviewed")); err != nil {
		logger.WarnWithFields("failed to notify creator of review", err)
	}

	c.JSON(http.StatusOK, gin.H{"media": media})
}

// RecordPlay registers a listen event for charts and the dashboard
// POST /api/v1/media/:id/play
func (h *Handlers) RecordPlay(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var media models.Media
	err := database.DB.Select("id", "status").First(&media, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "media")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch media")
		return
	}
	if media.Status != models.MediaApproved {
		util.RespondNotFound(c, "media")
		return
	}

	play := models.Play{UserID: userID, MediaID: media.ID}
	if err := database.DB.Create(&play).Error; err != nil {
		util.RespondInternalError(c, "failed to record play")
		return
	}

	metrics.Get().MediaPlaysTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

func isValidAudioFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg":
		return true
	}
	return false
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func mediaNotifyItem(mediaID, action string) notify.Item {
	return notify.Item{
		RelatedItemID:   mediaID,
		RelatedItemType: "media",
		Action:          action,
	}
}
