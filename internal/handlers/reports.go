package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/moderation"
	"github.com/melodix/backend/internal/util"
)

// FileReport lets a listener flag a media item for moderation
// POST /api/v1/media/:id/report
func (h *Handlers) FileReport(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Type        models.ReportType `json:"type" binding:"required"`
		Description string            `json:"description" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	report, err := h.moderation.FileReport(userID, c.Param("id"), req.Type, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrMediaNotFound):
			util.RespondNotFound(c, "media")
		case errors.Is(err, moderation.ErrOwnMedia):
			util.RespondValidationError(c, "id", "cannot report your own media")
		case errors.Is(err, moderation.ErrAlreadyReported):
			util.RespondInvalidState(c, "you have already reported this media")
		default:
			util.RespondInternalError(c, "failed to file report")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// ListReports returns the moderation queue for staff
// GET /api/v1/admin/reports
func (h *Handlers) ListReports(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	status := models.ReportStatus(c.DefaultQuery("status", string(models.ReportPending)))
	if status != "" && !status.Valid() {
		util.RespondValidationError(c, "status", "unknown report status")
		return
	}

	list, err := h.moderation.List(status, limit, offset)
	if err != nil {
		util.RespondInternalError(c, "failed to list reports")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": list, "count": len(list)})
}

// ListMediaReports returns every report filed against one media item
// GET /api/v1/admin/media/:id/reports
func (h *Handlers) ListMediaReports(c *gin.Context) {
	_, limit, offset := util.Pagination(c.Query("page"), c.Query("limit"))

	list, err := h.moderation.ListForMedia(c.Param("id"), limit, offset)
	if err != nil {
		util.RespondInternalError(c, "failed to list reports")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": list, "count": len(list)})
}

// DeleteReport withdraws a report from the queue
// DELETE /api/v1/admin/reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	err := h.moderation.Delete(c.Param("id"))
	if errors.Is(err, moderation.ErrReportNotFound) {
		util.RespondNotFound(c, "report")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to delete report")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ReviewReport accepts or rejects a filed report and reconciles the
// reported media's status
// PUT /api/v1/admin/reports/:id/review
func (h *Handlers) ReviewReport(c *gin.Context) {
	reviewerID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Decision models.ReportStatus `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if req.Decision != models.ReportAccepted && req.Decision != models.ReportRejected {
		util.RespondValidationError(c, "decision", "must be accepted or rejected")
		return
	}

	report, err := h.moderation.Review(c.Param("id"), reviewerID, req.Decision)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrReportNotFound):
			util.RespondNotFound(c, "report")
		default:
			logger.ErrorWithFields("report review failed", err)
			util.RespondInternalError(c, "failed to review report")
		}
		return
	}

	if report.Status == models.ReportAccepted {
		var media models.Media
		if err := database.DB.Select("id", "name", "created_by").
			First(&media, "id = ?", report.MediaID).Error; err == nil {
			content := "Your upload \"" + media.Name + "\" received an accepted report"
			if _, err := h.notify.Notify(media.CreatedBy, &reviewerID, models.NotifyReport, content,
				mediaNotifyItem(report.MediaID, "reported")); err != nil {
				logger.WarnWithFields("failed to notify creator of accepted report", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
