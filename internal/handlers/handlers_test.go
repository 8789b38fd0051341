package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/moderation"
	"github.com/melodix/backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// HandlersTestSuite exercises the social surface (likes, follows,
// comments, notifications) over a real router.
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	handlers *Handlers

	alice *models.User
	bob   *models.User
	song  *models.Media
}

func (suite *HandlersTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(postgres.Open(handlersTestDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping handler tests: database not available (%v)", err)
		return
	}

	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	database.DB = db

	err = db.AutoMigrate(
		&models.User{}, &models.Follow{}, &models.Media{},
		&models.Playlist{}, &models.PlaylistItem{}, &models.Comment{},
		&models.Notification{}, &models.NotificationItem{},
	)
	require.NoError(suite.T(), err)

	suite.db = db
	suite.handlers = NewHandlers(nil, nil, moderation.NewService(), notify.NewService(nil))
}

func (suite *HandlersTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS notification_items, notifications, comments, playlist_items, playlists, media, follows, users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *HandlersTestSuite) SetupTest() {
	for _, table := range []string{
		"notification_items", "notifications", "comments",
		"playlist_items", "playlists", "follows", "media", "users",
	} {
		suite.db.Exec("DELETE FROM " + table)
	}

	suite.alice = &models.User{Email: "alice@example.com", FullName: "Alice"}
	suite.bob = &models.User{Email: "bob@example.com", FullName: "Bob"}
	require.NoError(suite.T(), suite.db.Create(suite.alice).Error)
	require.NoError(suite.T(), suite.db.Create(suite.bob).Error)

	suite.song = &models.Media{
		Name:      "Bob's Track",
		Type:      models.MediaSong,
		AudioURL:  "https://cdn.example.com/t.mp3",
		CreatedBy: suite.bob.ID,
		Status:    models.MediaApproved,
	}
	require.NoError(suite.T(), suite.db.Create(suite.song).Error)
}

// router builds a minimal router with the given user planted into the
// request context, bypassing JWT validation.
func (suite *HandlersTestSuite) router(as *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", as)
		c.Set("user_id", as.ID)
		c.Set("user_role", as.Role)
		c.Next()
	})

	h := suite.handlers
	r.POST("/media/:id/like", h.LikeMedia)
	r.DELETE("/media/:id/like", h.UnlikeMedia)
	r.GET("/media/favourites", h.GetFavourites)
	r.POST("/users/:id/follow", h.FollowUser)
	r.DELETE("/users/:id/follow", h.UnfollowUser)
	r.GET("/users/:id/followers", h.ListFollowers)
	r.POST("/media/:id/comments", h.CreateComment)
	r.GET("/media/:id/comments", h.ListComments)
	r.DELETE("/comments/:id", h.DeleteComment)
	return r
}

func (suite *HandlersTestSuite) do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestLikeCreatesFavouritesAndCounts() {
	t := suite.T()
	r := suite.router(suite.alice)

	w := suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/like", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The favourites playlist is created lazily on first like.
	var favourites models.Playlist
	require.NoError(t, suite.db.Where("owner_id = ? AND type = ?", suite.alice.ID, models.PlaylistFavourite).
		First(&favourites).Error)

	var media models.Media
	require.NoError(t, suite.db.First(&media, "id = ?", suite.song.ID).Error)
	assert.Equal(t, 1, media.LikesCount)

	// Liking again is a no-op, not an error.
	w = suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/like", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, suite.db.First(&media, "id = ?", suite.song.ID).Error)
	assert.Equal(t, 1, media.LikesCount)

	// The creator gets a like notification, once.
	var count int64
	suite.db.Model(&models.Notification{}).Where("receiver_id = ?", suite.bob.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// Unlike drops the count.
	w = suite.do(r, http.MethodDelete, "/media/"+suite.song.ID+"/like", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, suite.db.First(&media, "id = ?", suite.song.ID).Error)
	assert.Equal(t, 0, media.LikesCount)
}

func (suite *HandlersTestSuite) TestFavouritesListing() {
	t := suite.T()
	r := suite.router(suite.alice)

	w := suite.do(r, http.MethodGet, "/media/favourites", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)

	suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/like", nil)

	w = suite.do(r, http.MethodGet, "/media/favourites", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func (suite *HandlersTestSuite) TestFollowUnfollow() {
	t := suite.T()
	r := suite.router(suite.alice)

	w := suite.do(r, http.MethodPost, "/users/"+suite.bob.ID+"/follow", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	suite.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", suite.alice.ID, suite.bob.ID).
		Count(&count)
	assert.Equal(t, int64(1), count)

	// Following the same user again is a conflict, not a silent no-op.
	w = suite.do(r, http.MethodPost, "/users/"+suite.bob.ID+"/follow", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already following")
	suite.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", suite.alice.ID, suite.bob.ID).
		Count(&count)
	assert.Equal(t, int64(1), count)

	// Following yourself is rejected.
	w = suite.do(r, http.MethodPost, "/users/"+suite.alice.ID+"/follow", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Followers listing shows alice.
	w = suite.do(r, http.MethodGet, "/users/"+suite.bob.ID+"/followers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = suite.do(r, http.MethodDelete, "/users/"+suite.bob.ID+"/follow", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = suite.do(r, http.MethodDelete, "/users/"+suite.bob.ID+"/follow", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestCommentThreading() {
	t := suite.T()
	r := suite.router(suite.alice)

	w := suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/comments",
		gin.H{"content": "top level"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Comment models.Comment `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	parentID := created.Comment.ID

	// A direct reply.
	w = suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/comments",
		gin.H{"content": "reply", "parent_id": parentID})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	replyID := created.Comment.ID

	// A reply to the reply attaches to the original parent.
	w = suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/comments",
		gin.H{"content": "nested", "parent_id": replyID})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Comment.ParentID)
	assert.Equal(t, parentID, *created.Comment.ParentID)

	// Listing returns one thread with two replies.
	w = suite.do(r, http.MethodGet, "/media/"+suite.song.ID+"/comments", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Comments []struct {
			ID      string           `json:"id"`
			Replies []models.Comment `json:"replies"`
		} `json:"comments"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Equal(t, 1, listing.Count)
	assert.Len(t, listing.Comments[0].Replies, 2)

	var media models.Media
	require.NoError(t, suite.db.First(&media, "id = ?", suite.song.ID).Error)
	assert.Equal(t, 3, media.CommentsCount)
}

func (suite *HandlersTestSuite) TestDeleteCommentCascadesReplies() {
	t := suite.T()
	r := suite.router(suite.alice)

	w := suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/comments",
		gin.H{"content": "parent"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Comment models.Comment `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	parentID := created.Comment.ID

	suite.do(r, http.MethodPost, "/media/"+suite.song.ID+"/comments",
		gin.H{"content": "reply", "parent_id": parentID})

	// Bob cannot delete alice's comment.
	bobRouter := suite.router(suite.bob)
	w = suite.do(bobRouter, http.MethodDelete, "/comments/"+parentID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = suite.do(r, http.MethodDelete, "/comments/"+parentID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	suite.db.Model(&models.Comment{}).Where("media_id = ?", suite.song.ID).Count(&count)
	assert.Zero(t, count)

	var media models.Media
	require.NoError(t, suite.db.First(&media, "id = ?", suite.song.ID).Error)
	assert.Equal(t, 0, media.CommentsCount)
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func handlersTestDSN() string {
	host := handlersEnvOr("POSTGRES_HOST", "localhost")
	port := handlersEnvOr("POSTGRES_PORT", "5432")
	user := handlersEnvOr("POSTGRES_USER", "postgres")
	password := handlersEnvOr("POSTGRES_PASSWORD", "")
	dbname := handlersEnvOr("POSTGRES_DB", "melodix_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return dsn
}

func handlersEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
