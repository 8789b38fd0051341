package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/cache"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/middleware"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/util"
)

const dashboardCacheKey = "dashboard:stats"
const dashboardCacheTTL = 60 * time.Second

type dashboardStats struct {
	Users struct {
		Total  int64 `json:"total"`
		Active int64 `json:"active"`
		Banned int64 `json:"banned"`
		VIP    int64 `json:"vip"`
	} `json:"users"`
	Media struct {
		Total    int64 `json:"total"`
		Pending  int64 `json:"pending"`
		Approved int64 `json:"approved"`
		Reported int64 `json:"reported"`
	} `json:"media"`
	Payments struct {
		Requested           int64 `json:"requested"`
		RequestedTotalCents int64 `json:"requested_total_cents"`
		CompletedTotalCents int64 `json:"completed_total_cents"`
	} `json:"payments"`
	Reports struct {
		Pending int64 `json:"pending"`
	} `json:"reports"`
	TopMedia    []topMediaEntry `json:"top_media"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type topMediaEntry struct {
	MediaID string `json:"media_id"`
	Name    string `json:"name"`
	Plays   int64  `json:"plays"`
}

// Dashboard returns aggregate platform counts for the staff console.
// Results are cached in Redis for a minute.
// GET /api/v1/admin/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	if rc := cache.GetRedisClient(); rc != nil {
		if raw, err := rc.Get(ctx, dashboardCacheKey); err == nil {
			var stats dashboardStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				middleware.RecordCacheHit("dashboard")
				c.JSON(http.StatusOK, gin.H{"stats": stats, "cached": true})
				return
			}
		} else if cache.IsNil(err) {
			middleware.RecordCacheMiss("dashboard")
		}
	}

	stats, err := collectDashboardStats()
	if err != nil {
		logger.ErrorWithFields("dashboard aggregation failed", err)
		util.RespondInternalError(c, "failed to build dashboard")
		return
	}

	if rc := cache.GetRedisClient(); rc != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := rc.SetEx(ctx, dashboardCacheKey, string(raw), dashboardCacheTTL); err != nil {
				logger.WarnWithFields("failed to cache dashboard", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats, "cached": false})
}

// RecentActivity returns the latest signups, uploads and purchases for
// the staff console. Uncached: moderators want it live.
// GET /api/v1/admin/dashboard/recent
func (h *Handlers) RecentActivity(c *gin.Context) {
	db := database.DB

	var users []models.User
	if err := db.Order("created_at DESC").Limit(10).Find(&users).Error; err != nil {
		util.RespondInternalError(c, "failed to load recent activity")
		return
	}

	var media []models.Media
	if err := db.Preload("Creator").Order("created_at DESC").Limit(10).
		Find(&media).Error; err != nil {
		util.RespondInternalError(c, "failed to load recent activity")
		return
	}

	var receipts []models.PaymentReceipt
	if err := db.Preload("Buyer").Order("created_at DESC").Limit(10).
		Find(&receipts).Error; err != nil {
		util.RespondInternalError(c, "failed to load recent activity")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":     users,
		"media":     media,
		"purchases": receipts,
	})
}

func collectDashboardStats() (*dashboardStats, error) {
	db := database.DB
	stats := &dashboardStats{GeneratedAt: time.Now().UTC()}

	if err := db.Model(&models.User{}).Count(&stats.Users.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("status = ?", models.UserActive).
		Count(&stats.Users.Active).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("status = ?", models.UserBanned).
		Count(&stats.Users.Banned).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleVIP).
		Count(&stats.Users.VIP).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Media{}).Count(&stats.Media.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Media{}).Where("status = ?", models.MediaPending).
		Count(&stats.Media.Pending).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Media{}).Where("status = ?", models.MediaApproved).
		Count(&stats.Media.Approved).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Media{}).Where("status = ?", models.MediaReported).
		Count(&stats.Media.Reported).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Payment{}).Where("status = ?", models.PaymentRequested).
		Count(&stats.Payments.Requested).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Payment{}).Where("status = ?", models.PaymentRequested).
		Select("COALESCE(SUM(total_amount_cents), 0)").
		Scan(&stats.Payments.RequestedTotalCents).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Payment{}).Where("status = ?", models.PaymentCompleted).
		Select("COALESCE(SUM(total_amount_cents), 0)").
		Scan(&stats.Payments.CompletedTotalCents).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Report{}).Where("status = ?", models.ReportPending).
		Count(&stats.Reports.Pending).Error; err != nil {
		return nil, err
	}

	err := db.Raw(`
		SELECT m.id AS media_id, m.name, COUNT(p.id) AS plays
		FROM media m
		JOIN plays p ON p.media_id = m.id
		WHERE m.deleted_at IS NULL
		GROUP BY m.id, m.name
		ORDER BY plays DESC
		LIMIT 10`).Scan(&stats.TopMedia).Error
	if err != nil {
		return nil, err
	}
	if stats.TopMedia == nil {
		stats.TopMedia = []topMediaEntry{}
	}

	return stats, nil
}
