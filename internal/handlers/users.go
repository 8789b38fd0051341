package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/util"
	"gorm.io/gorm"
)

// GetUser returns a user's public profile
// GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	var user models.User
	err := database.DB.First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch user")
		return
	}

	var followers, following, tracks int64
	database.DB.Model(&models.Follow{}).Where("followee_id = ?", user.ID).Count(&followers)
	database.DB.Model(&models.Follow{}).Where("follower_id = ?", user.ID).Count(&following)
	database.DB.Model(&models.Media{}).
		Where("created_by = ? AND status = ?", user.ID, models.MediaApproved).
		Count(&tracks)

	isFollowing := false
	if callerID := contextUserID(c); callerID != "" && callerID != user.ID {
		var n int64
		database.DB.Model(&models.Follow{}).
			Where("follower_id = ? AND followee_id = ?", callerID, user.ID).
			Count(&n)
		isFollowing = n > 0
	}

	c.JSON(http.StatusOK, gin.H{
		"user":            user,
		"followers_count": followers,
		"following_count": following,
		"tracks_count":    tracks,
		"is_following":    isFollowing,
	})
}

// VIPStatus reports the authenticated user's VIP window
// GET /api/v1/users/me/vip-status
func (h *Handlers) VIPStatus(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"is_vip":        currentUser.IsVIP(),
		"vip_starts_at": currentUser.VIPStartsAt,
		"vip_ends_at":   currentUser.VIPEndsAt,
	})
}

// UploadAvatar replaces the authenticated user's avatar
// POST /api/v1/users/me/avatar
func (h *Handlers) UploadAvatar(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.uploader == nil {
		util.RespondInternalError(c, "file storage is not configured")
		return
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		util.RespondValidationError(c, "avatar", "an image file is required")
		return
	}
	if header.Size > maxImageUploadBytes {
		util.RespondValidationError(c, "avatar", "image exceeds the 10MB limit")
		return
	}

	data, err := readMultipartFile(header)
	if err != nil {
		util.RespondInternalError(c, "failed to read uploaded file")
		return
	}

	result, err := h.uploader.UploadImage(c.Request.Context(), data, currentUser.ID, header.Filename)
	if err != nil {
		util.RespondInternalError(c, "failed to store avatar")
		return
	}

	currentUser.AvatarURL = result.URL
	if err := database.DB.Save(currentUser).Error; err != nil {
		util.RespondInternalError(c, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": currentUser})
}

// UpdateProfile updates the authenticated user's own profile
// PUT /api/v1/users/me
func (h *Handlers) UpdateProfile(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		FullName  *string    `json:"full_name" binding:"omitempty,min=1,max=100"`
		AvatarURL *string    `json:"avatar_url"`
		Birthday  *time.Time `json:"birthday"`
		Address   *string    `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.FullName != nil {
		currentUser.FullName = *req.FullName
	}
	if req.AvatarURL != nil {
		currentUser.AvatarURL = *req.AvatarURL
	}
	if req.Birthday != nil {
		currentUser.Birthday = req.Birthday
	}
	if req.Address != nil {
		currentUser.Address = *req.Address
	}

	if err := database.DB.Save(currentUser).Error; err != nil {
		util.RespondInternalError(c, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": currentUser})
}

// UpdatePayoutDetails sets the seller's payout identity
// PUT /api/v1/users/me/payout
func (h *Handlers) UpdatePayoutDetails(c *gin.Context) {
	currentUser, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		PayoutAccountID string `json:"payout_account_id"`
		PayoutEmail     string `json:"payout_email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	currentUser.PayoutAccountID = req.PayoutAccountID
	currentUser.PayoutEmail = req.PayoutEmail
	if err := database.DB.Save(currentUser).Error; err != nil {
		util.RespondInternalError(c, "failed to update payout details")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": currentUser})
}

// ListUsers returns accounts for staff review
// GET /api/v1/admin/users
func (h *Handlers) ListUsers(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	q := database.DB.Order("created_at DESC").Limit(limit).Offset(offset)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if search := c.Query("q"); search != "" {
		q = q.Where("LOWER(email) LIKE LOWER(?) OR LOWER(full_name) LIKE LOWER(?)",
			"%"+search+"%", "%"+search+"%")
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		util.RespondInternalError(c, "failed to list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// UpdateUserStatus activates, deactivates or bans an account
// PUT /api/v1/admin/users/:id/status
func (h *Handlers) UpdateUserStatus(c *gin.Context) {
	var req struct {
		Status models.UserStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if !req.Status.Valid() {
		util.RespondValidationError(c, "status", "unknown status")
		return
	}

	var user models.User
	err := database.DB.First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch user")
		return
	}

	// Admin accounts are managed via the CLI, not each other
	if user.Role == models.RoleAdmin {
		util.RespondForbidden(c, "cannot change an admin account's status")
		return
	}

	user.Status = req.Status
	if err := database.DB.Save(&user).Error; err != nil {
		util.RespondInternalError(c, "failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUserRole promotes or demotes an account (admin only)
// PUT /api/v1/admin/users/:id/role
func (h *Handlers) UpdateUserRole(c *gin.Context) {
	var req struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if !req.Role.Valid() {
		util.RespondValidationError(c, "role", "unknown role")
		return
	}

	var user models.User
	err := database.DB.First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch user")
		return
	}

	user.Role = req.Role
	if err := database.DB.Save(&user).Error; err != nil {
		util.RespondInternalError(c, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser soft-deletes an account (admin only)
// DELETE /api/v1/admin/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	var user models.User
	err := database.DB.First(&user, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to fetch user")
		return
	}

	if user.Role == models.RoleAdmin {
		util.RespondForbidden(c, "cannot delete an admin account")
		return
	}

	if err := database.DB.Delete(&user).Error; err != nil {
		util.RespondInternalError(c, "failed to delete user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListVIPUsers returns VIP accounts with their sale earnings rolled up
// GET /api/v1/admin/users/vip
func (h *Handlers) ListVIPUsers(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	var users []models.User
	err := database.DB.
		Where("role = ?", models.RoleVIP).
		Order("vip_ends_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list VIP users")
		return
	}

	type vipEntry struct {
		User         models.User `json:"user"`
		SalesCount   int64       `json:"sales_count"`
		EarnedCents  int64       `json:"earned_cents"`
		PendingCents int64       `json:"pending_cents"`
	}

	entries := make([]vipEntry, 0, len(users))
	for _, u := range users {
		var entry vipEntry
		entry.User = u
		database.DB.Model(&models.PaymentReceipt{}).
			Where("seller_id = ?", u.ID).
			Count(&entry.SalesCount)
		database.DB.Model(&models.PaymentReceipt{}).
			Where("seller_id = ? AND status = ?", u.ID, models.ReceiptCompleted).
			Select("COALESCE(SUM(total_cents), 0)").
			Scan(&entry.EarnedCents)
		database.DB.Model(&models.PaymentReceipt{}).
			Where("seller_id = ? AND status = ?", u.ID, models.ReceiptPending).
			Select("COALESCE(SUM(total_cents), 0)").
			Scan(&entry.PendingCents)
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{"users": entries, "count": len(entries)})
}
