package moderation

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ModerationTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service

	creator  *models.User
	reviewer *models.User
	media    *models.Media
}

func (suite *ModerationTestSuite) SetupSuite() {
	db, err := gorm.Open(postgres.Open(moderationTestDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping moderation tests: database not available (%v)", err)
		return
	}

	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	database.DB = db

	err = db.AutoMigrate(&models.User{}, &models.Media{}, &models.Report{})
	require.NoError(suite.T(), err)

	suite.db = db
	suite.service = NewService()
}

func (suite *ModerationTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS reports, media, users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *ModerationTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM reports")
	suite.db.Exec("DELETE FROM media")
	suite.db.Exec("DELETE FROM users")

	suite.creator = &models.User{Email: "creator@example.com", FullName: "Creator"}
	suite.reviewer = &models.User{Email: "reviewer@example.com", FullName: "Reviewer", Role: models.RoleStaff}
	require.NoError(suite.T(), suite.db.Create(suite.creator).Error)
	require.NoError(suite.T(), suite.db.Create(suite.reviewer).Error)

	suite.media = &models.Media{
		Name:       "Contested Track",
		Type:       models.MediaSong,
		AudioURL:   "https://cdn.example.com/c.mp3",
		CreatedBy:  suite.creator.ID,
		Status:     models.MediaApproved,
		ApprovedBy: &suite.reviewer.ID,
	}
	require.NoError(suite.T(), suite.db.Create(suite.media).Error)
}

func (suite *ModerationTestSuite) newReporter(n int) *models.User {
	user := &models.User{
		Email:    fmt.Sprintf("reporter%d@example.com", n),
		FullName: fmt.Sprintf("Reporter %d", n),
	}
	require.NoError(suite.T(), suite.db.Create(user).Error)
	return user
}

func (suite *ModerationTestSuite) TestFileReport() {
	t := suite.T()
	reporter := suite.newReporter(1)

	report, err := suite.service.FileReport(reporter.ID, suite.media.ID, models.ReportSpam, "spammy upload")
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, report.Status)

	// One report per reporter per media.
	_, err = suite.service.FileReport(reporter.ID, suite.media.ID, models.ReportOther, "again")
	assert.ErrorIs(t, err, ErrAlreadyReported)

	// Creators cannot report their own uploads.
	_, err = suite.service.FileReport(suite.creator.ID, suite.media.ID, models.ReportSpam, "")
	assert.ErrorIs(t, err, ErrOwnMedia)

	_, err = suite.service.FileReport(reporter.ID, "00000000-0000-0000-0000-000000000000", models.ReportSpam, "")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func (suite *ModerationTestSuite) TestReviewUpdatesCounters() {
	t := suite.T()
	reporter := suite.newReporter(1)

	report, err := suite.service.FileReport(reporter.ID, suite.media.ID, models.ReportCopyright, "")
	require.NoError(t, err)

	reviewed, err := suite.service.Review(report.ID, suite.reviewer.ID, models.ReportAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.ReportAccepted, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)

	var media models.Media
	require.NoError(t, suite.db.First(&media, "id = ?", suite.media.ID).Error)
	assert.Equal(t, 1, media.ReportsCount)
	assert.Equal(t, models.MediaApproved, media.Status)
}

func (suite *ModerationTestSuite) TestThresholdFlipsMediaToReported() {
	t := suite.T()

	// Accepted reports at the threshold leave the media approved; one
	// more flips it.
	for i := 0; i < ReportThreshold+1; i++ {
		reporter := suite.newReporter(i)
		report, err := suite.service.FileReport(reporter.ID, suite.media.ID, models.ReportInappropriate, "")
		require.NoError(t, err)

		_, err = suite.service.Review(report.ID, suite.reviewer.ID, models.ReportAccepted)
		require.NoError(t, err)

		var media models.Media
		require.NoError(t, suite.db.First(&media, "id = ?", suite.media.ID).Error)
		if i < ReportThreshold {
			assert.Equal(t, models.MediaApproved, media.Status, "report %d", i+1)
		} else {
			assert.Equal(t, models.MediaReported, media.Status)
		}
	}

	// Creator's report count follows their reported media.
	var creator models.User
	require.NoError(t, suite.db.First(&creator, "id = ?", suite.creator.ID).Error)
	assert.Equal(t, 1, creator.ReportCount)
}

func (suite *ModerationTestSuite) TestReversedDecisionRestoresMedia() {
	t := suite.T()

	var firstReport models.Report
	for i := 0; i < ReportThreshold+1; i++ {
		reporter := suite.newReporter(i)
		report, err := suite.service.FileReport(reporter.ID, suite.media.ID, models.ReportSpam, "")
		require.NoError(t, err)
		if i == 0 {
			firstReport = *report
		}
		_, err = suite.service.Review(report.ID, suite.reviewer.ID, models.ReportAccepted)
		require.NoError(t, err)
	}

	var media models.Media
	require.NoError(t, suite.db.First(&media, "id = ?", suite.media.ID).Error)
	require.Equal(t, models.MediaReported, media.Status)

	// Re-reviewing one report as rejected drops the count back under the
	// threshold and restores the media.
	_, err := suite.service.Review(firstReport.ID, suite.reviewer.ID, models.ReportRejected)
	require.NoError(t, err)

	require.NoError(t, suite.db.First(&media, "id = ?", suite.media.ID).Error)
	assert.Equal(t, models.MediaApproved, media.Status)
	assert.Equal(t, ReportThreshold, media.ReportsCount)

	var creator models.User
	require.NoError(t, suite.db.First(&creator, "id = ?", suite.creator.ID).Error)
	assert.Equal(t, 0, creator.ReportCount)
}

func (suite *ModerationTestSuite) TestReportedPendingMediaRestoresToQueue() {
	t := suite.T()

	// An upload that never passed review can still cross the threshold.
	pending := &models.Media{
		Name:      "Unreviewed Track",
		Type:      models.MediaSong,
		AudioURL:  "https://cdn.example.com/u.mp3",
		CreatedBy: suite.creator.ID,
		Status:    models.MediaPending,
	}
	require.NoError(t, suite.db.Create(pending).Error)

	var firstReport models.Report
	for i := 0; i < ReportThreshold+1; i++ {
		reporter := suite.newReporter(i)
		report, err := suite.service.FileReport(reporter.ID, pending.ID, models.ReportSpam, "")
		require.NoError(t, err)
		if i == 0 {
			firstReport = *report
		}
		_, err = suite.service.Review(report.ID, suite.reviewer.ID, models.ReportAccepted)
		require.NoError(t, err)
	}

	var media models.Media
	require.NoError(t, suite.db.First(&media, "id = ?", pending.ID).Error)
	require.Equal(t, models.MediaReported, media.Status)

	// Reversing back under the threshold returns it to the review
	// queue, never straight into the catalog.
	_, err := suite.service.Review(firstReport.ID, suite.reviewer.ID, models.ReportRejected)
	require.NoError(t, err)

	require.NoError(t, suite.db.First(&media, "id = ?", pending.ID).Error)
	assert.Equal(t, models.MediaPending, media.Status)
}

func TestModerationSuite(t *testing.T) {
	suite.Run(t, new(ModerationTestSuite))
}

func moderationTestDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "postgres")
	password := envOr("POSTGRES_PASSWORD", "")
	dbname := envOr("POSTGRES_DB", "melodix_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return dsn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
