package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/util"
	"gorm.io/gorm"
)

const maxCommentLen = 2000

// CreateComment posts a comment (or a one-level reply) on a media item
// POST /api/v1/media/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
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

	var req struct {
		Content  string  `json:"content" binding:"required"`
		ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > maxCommentLen {
		util.RespondValidationError(c, "content", "must be between 1 and 2000 characters")
		return
	}

	// Replies to replies attach to the original top-level comment, so
	// threads stay one level deep.
	if req.ParentID != nil {
		var parent models.Comment
		err := database.DB.First(&parent, "id = ? AND media_id = ?", *req.ParentID, media.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "parent comment")
			return
		} else if err != nil {
			util.RespondInternalError(c, "failed to fetch parent comment")
			return
		}
		if parent.ParentID != nil {
			req.ParentID = parent.ParentID
		}
	}

	comment := models.Comment{
		Content:  req.Content,
		UserID:   currentUser.ID,
		MediaID:  media.ID,
		ParentID: req.ParentID,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return recomputeCommentsTx(tx, media.ID)
	})
	if err != nil {
		util.RespondInternalError(c, "failed to create comment")
		return
	}

	if media.CreatedBy != currentUser.ID {
		content := currentUser.FullName + " commented on \"" + media.Name + "\""
		if _, err := h.notify.Notify(media.CreatedBy, &currentUser.ID, models.NotifyComment, content,
			mediaNotifyItem(media.ID, "commented")); err != nil {
			logger.WarnWithFields("failed to notify creator of comment", err)
		}
	}

	comment.User = currentUser
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// ListComments returns a media item's comments as top-level threads with
// nested replies
// GET /api/v1/media/:id/comments
func (h *Handlers) ListComments(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))
	mediaID := c.Param("id")

	var topLevel []models.Comment
	err := database.DB.Preload("User").
		Where("media_id = ? AND parent_id IS NULL", mediaID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&topLevel).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list comments")
		return
	}

	type thread struct {
		models.Comment
		Replies []models.Comment `json:"replies"`
	}

	threads := make([]thread, 0, len(topLevel))
	if len(topLevel) > 0 {
		parentIDs := make([]string, 0, len(topLevel))
		for _, cm := range topLevel {
			parentIDs = append(parentIDs, cm.ID)
		}

		var replies []models.Comment
		err = database.DB.Preload("User").
			Where("media_id = ? AND parent_id IN ?", mediaID, parentIDs).
			Order("created_at ASC").
			Find(&replies).Error
		if err != nil {
			util.RespondInternalError(c, "failed to list comments")
			return
		}

		byParent := make(map[string][]models.Comment, len(topLevel))
		for _, r := range replies {
			byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
		}
		for _, cm := range topLevel {
			replyList := byParent[cm.ID]
			if replyList == nil {
				replyList = []models.Comment{}
			}
			threads = append(threads, thread{Comment: cm, Replies: replyList})
		}
	}

	c.JSON(http.StatusOK, gin.H{"comments": threads, "count": len(threads)})
}

// DeleteComment removes a comment. Replies go with it. Owners and staff only
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var comment models.Comment
	err := database.DB.First(&comment, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "comment")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch comment")
		return
	}

	if comment.UserID != currentUser.ID && !currentUser.Role.Privileged() {
		util.RespondForbidden(c, "not your comment")
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return recomputeCommentsTx(tx, comment.MediaID)
	})
	if err != nil {
		util.RespondInternalError(c, "failed to delete comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// recomputeCommentsTx refreshes comments_count from live comment rows.
func recomputeCommentsTx(tx *gorm.DB, mediaID string) error {
	return tx.Exec(`
		UPDATE media SET comments_count = (
			SELECT COUNT(*) FROM comments
			WHERE media_id = ? AND deleted_at IS NULL
		) WHERE id = ?`, mediaID, mediaID).Error
}
