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

// FollowUser makes the caller follow the user in :id
// POST /api/v1/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	targetID := c.Param("id")

	if targetID == currentUser.ID {
		util.RespondValidationError(c, "id", "cannot follow yourself")
		return
	}

	var target models.User
	err := database.DB.Select("id", "status").First(&target, "id = ?", targetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch user")
		return
	}
	if target.Status != models.UserActive {
		util.RespondNotFound(c, "user")
		return
	}

	follow := models.Follow{FollowerID: currentUser.ID, FolloweeID: targetID}
	res := database.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow)
	if res.Error != nil {
		util.RespondInternalError(c, "failed to follow user")
		return
	}
	if res.RowsAffected == 0 {
		util.RespondInvalidState(c, "already following")
		return
	}

	content := currentUser.FullName + " started following you"
	if _, err := h.notify.Notify(targetID, &currentUser.ID, models.NotifyFollow, content); err != nil {
		logger.WarnWithFields("failed to notify followee", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "following"})
}

// UnfollowUser removes the caller's follow edge to :id
// DELETE /api/v1/users/:id/follow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	res := database.DB.Where("follower_id = ? AND followee_id = ?", userID, c.Param("id")).
		Delete(&models.Follow{})
	if res.Error != nil {
		util.RespondInternalError(c, "failed to unfollow user")
		return
	}
	if res.RowsAffected == 0 {
		util.RespondNotFound(c, "follow")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unfollowed"})
}

// ListFollowers returns the users following :id
// GET /api/v1/users/:id/followers
func (h *Handlers) ListFollowers(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var follows []models.Follow
	err := database.DB.Preload("Follower").
		Where("followee_id = ?", c.Param("id")).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&follows).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list followers")
		return
	}

	users := make([]*models.User, 0, len(follows))
	for _, f := range follows {
		if f.Follower != nil {
			users = append(users, f.Follower)
		}
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// ListFollowing returns the users that :id follows
// GET /api/v1/users/:id/following
func (h *Handlers) ListFollowing(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var follows []models.Follow
	err := database.DB.Preload("Followee").
		Where("follower_id = ?", c.Param("id")).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&follows).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list following")
		return
	}

	users := make([]*models.User, 0, len(follows))
	for _, f := range follows {
		if f.Followee != nil {
			users = append(users, f.Followee)
		}
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}
