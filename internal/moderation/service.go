package moderation

import (
	"errors"
	"fmt"

	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/metrics"
	"github.com/melodix/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportThreshold is the number of accepted reports a media item survives.
// One more than this flips the item to reported status.
const ReportThreshold = 15

var (
	ErrAlreadyReported = errors.New("media already reported by this user")
	ErrReportNotFound  = errors.New("report not found")
	ErrMediaNotFound   = errors.New("media not found")
	ErrOwnMedia        = errors.New("cannot report your own media")
)

// Service runs the report intake and review workflows
type Service struct{}

// NewService creates a moderation service
func NewService() *Service {
	return &Service{}
}

// FileReport records one user's complaint against a media item
func (s *Service) FileReport(reporterID, mediaID string, reportType models.ReportType, description string) (*models.Report, error) {
	if !reportType.Valid() {
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}

	var media models.Media
	if err := database.DB.First(&media, "id = ?", mediaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if media.CreatedBy == reporterID {
		return nil, ErrOwnMedia
	}

	var existing int64
	err := database.DB.Model(&models.Report{}).
		Where("media_id = ? AND reporter_id = ?", mediaID, reporterID).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyReported
	}

	report := models.Report{
		MediaID:     mediaID,
		ReporterID:  reporterID,
		Type:        reportType,
		Description: description,
		Status:      models.ReportPending,
	}
	if err := database.DB.Create(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	metrics.Get().ReportsFiledTotal.Inc()
	logger.Log.Info("report filed",
		logger.WithUserID(reporterID),
		logger.WithMediaID(mediaID),
		zap.String("report_type", string(reportType)),
	)

	return &report, nil
}

// Review records a moderator decision on a report and reconciles the
// media's accepted-report count. Crossing the threshold flips the media
// to reported status; the creator's report count is recounted either way.
func (s *Service) Review(reportID, reviewerID string, decision models.ReportStatus) (*models.Report, error) {
	if decision != models.ReportAccepted && decision != models.ReportRejected {
		return nil, fmt.Errorf("decision must be accepted or rejected")
	}

	var report models.Report
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&report, "id = ?", reportID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		report.Status = decision
		report.ReviewedBy = &reviewerID
		if err := tx.Save(&report).Error; err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}

		return s.reconcileMedia(tx, report.MediaID)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// reconcileMedia recounts accepted reports for the media, applies the
// threshold, and recounts the creator's reported media.
func (s *Service) reconcileMedia(tx *gorm.DB, mediaID string) error {
	var media models.Media
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&media, "id = ?", mediaID).Error
	if err != nil {
		return fmt.Errorf("failed to lock media: %w", err)
	}

	var accepted int64
	err = tx.Model(&models.Report{}).
		Where("media_id = ? AND status = ?", mediaID, models.ReportAccepted).
		Count(&accepted).Error
	if err != nil {
		return fmt.Errorf("failed to count reports: %w", err)
	}

	media.ReportsCount = int(accepted)

	switch {
	case accepted > ReportThreshold && media.Status != models.MediaReported:
		media.Status = models.MediaReported
		logger.Log.Warn("media crossed report threshold",
			logger.WithMediaID(media.ID),
			zap.Int64("accepted_reports", accepted),
		)
	case accepted <= ReportThreshold && media.Status == models.MediaReported:
		// Reversed decisions pull the item back below the line
		media.Status = statusBeforeReported(&media)
	}

	if err := tx.Save(&media).Error; err != nil {
		return fmt.Errorf("failed to update media: %w", err)
	}

	return recountCreatorReports(tx, media.CreatedBy)
}

// statusBeforeReported derives what a reported item was before the
// threshold flipped it. Unreviewed media goes back to the review queue,
// not straight into the catalog.
func statusBeforeReported(media *models.Media) models.MediaStatus {
	switch {
	case media.ApprovedBy == nil:
		return models.MediaPending
	case media.RejectionNote != "":
		return models.MediaRejected
	default:
		return models.MediaApproved
	}
}

// recountCreatorReports sets the creator's report count to the number of
// their media currently in reported status.
func recountCreatorReports(tx *gorm.DB, creatorID string) error {
	var reported int64
	err := tx.Model(&models.Media{}).
		Where("created_by = ? AND status = ?", creatorID, models.MediaReported).
		Count(&reported).Error
	if err != nil {
		return fmt.Errorf("failed to count reported media: %w", err)
	}

	return tx.Model(&models.User{}).
		Where("id = ?", creatorID).
		Update("report_count", reported).Error
}

// List returns reports for staff review, optionally filtered by status
func (s *Service) List(status models.ReportStatus, limit, offset int) ([]models.Report, error) {
	q := database.DB.Preload("Media").Preload("Reporter").
		Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.Report
	err := q.Find(&list).Error
	return list, err
}

// ListForMedia returns every report filed against one media item
func (s *Service) ListForMedia(mediaID string, limit, offset int) ([]models.Report, error) {
	var list []models.Report
	err := database.DB.Preload("Reporter").
		Where("media_id = ?", mediaID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// Delete removes a report. Deleting an accepted report reconciles the
// media the same way a reversed decision does.
func (s *Service) Delete(reportID string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var report models.Report
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&report, "id = ?", reportID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		if err := tx.Delete(&report).Error; err != nil {
			return fmt.Errorf("failed to delete report: %w", err)
		}

		return s.reconcileMedia(tx, report.MediaID)
	})
}

// Get returns one report by ID
func (s *Service) Get(reportID string) (*models.Report, error) {
	var report models.Report
	err := database.DB.Preload("Media").Preload("Reporter").First(&report, "id = ?", reportID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	} else if err != nil {
		return nil, err
	}
	return &report, nil
}
