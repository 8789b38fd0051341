package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeder fills the database with realistic development data.
type Seeder struct {
	db *gorm.DB
}

func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("creating media...")
	media, err := s.seedMedia(users, 200)
	if err != nil {
		return fmt.Errorf("failed to seed media: %w", err)
	}

	logger.Log.Info("creating follows...")
	if err := s.seedFollows(users, 150); err != nil {
		return fmt.Errorf("failed to seed follows: %w", err)
	}

	logger.Log.Info("creating likes...")
	if err := s.seedLikes(users, media, 400); err != nil {
		return fmt.Errorf("failed to seed likes: %w", err)
	}

	logger.Log.Info("creating comments...")
	if err := s.seedComments(users, media, 300); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	logger.Log.Info("creating plays...")
	if err := s.seedPlays(users, media, 1000); err != nil {
		return fmt.Errorf("failed to seed plays: %w", err)
	}

	logger.Log.Info("creating chat messages...")
	if err := s.seedMessages(users, 200); err != nil {
		return fmt.Errorf("failed to seed messages: %w", err)
	}

	logger.Log.Info("seeding complete")
	return nil
}

// SeedTest seeds a minimal dataset for integration testing.
func (s *Seeder) SeedTest() error {
	users, err := s.seedUsers(5)
	if err != nil {
		return err
	}
	if _, err := s.seedMedia(users, 10); err != nil {
		return err
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		user := models.User{
			Email:        fmt.Sprintf("%d.%s", i, strings.ToLower(gofakeit.Email())),
			FullName:     gofakeit.Name(),
			PasswordHash: &hashStr,
			Address:      gofakeit.Address().Address,
			Role:         models.RoleUser,
			Status:       models.UserActive,
		}
		// Every fifth account is a VIP seller with an active window.
		if i%5 == 0 {
			start := time.Now().AddDate(0, -rand.Intn(6), 0)
			end := start.AddDate(1, 0, 0)
			user.Role = models.RoleVIP
			user.VIPStartsAt = &start
			user.VIPEndsAt = &end
			user.PayoutEmail = user.Email
		}
		users = append(users, user)
	}

	if err := s.db.CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) seedMedia(users []models.User, count int) ([]models.Media, error) {
	genres := []models.Genre{models.GenrePop, models.GenreRap, models.GenreJazz, models.GenreClassical}

	media := make([]models.Media, 0, count)
	for i := 0; i < count; i++ {
		creator := users[rand.Intn(len(users))]
		row := models.Media{
			Name:        gofakeit.Sentence(3),
			ArtistName:  creator.FullName,
			AudioURL:    fmt.Sprintf("https://cdn.example.com/audio/%s.mp3", gofakeit.UUID()),
			ImageURL:    fmt.Sprintf("https://cdn.example.com/images/%s.jpg", gofakeit.UUID()),
			Duration:    float64(30 + rand.Intn(300)),
			Description: gofakeit.Sentence(12),
			Type:        models.MediaSong,
			Genre:       genres[rand.Intn(len(genres))],
			CreatedBy:   creator.ID,
			Status:      models.MediaApproved,
		}
		if i%10 == 0 {
			row.Type = models.MediaPodcast
		}
		if i%7 == 0 {
			row.Status = models.MediaPending
		}
		// VIP creators sell roughly half their approved uploads.
		if creator.Role == models.RoleVIP && row.Status == models.MediaApproved && rand.Intn(2) == 0 {
			price := int64(99 + rand.Intn(900))
			row.PriceCents = &price
		}
		media = append(media, row)
	}

	if err := s.db.CreateInBatches(&media, 100).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (s *Seeder) seedFollows(users []models.User, count int) error {
	for i := 0; i < count; i++ {
		follower := users[rand.Intn(len(users))]
		followee := users[rand.Intn(len(users))]
		if follower.ID == followee.ID {
			continue
		}
		follow := models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedLikes(users []models.User, media []models.Media, count int) error {
	favourites := make(map[string]string, len(users))
	for _, u := range users {
		playlist := models.Playlist{
			Name:    "Favourites",
			Type:    models.PlaylistFavourite,
			OwnerID: u.ID,
		}
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&playlist).Error; err != nil {
			return err
		}
		if playlist.ID == "" {
			if err := s.db.Where("owner_id = ? AND type = ?", u.ID, models.PlaylistFavourite).
				First(&playlist).Error; err != nil {
				return err
			}
		}
		favourites[u.ID] = playlist.ID
	}

	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		m := media[rand.Intn(len(media))]
		if m.Status != models.MediaApproved {
			continue
		}
		item := models.PlaylistItem{PlaylistID: favourites[user.ID], MediaID: m.ID}
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
			return err
		}
	}

	// Backfill the denormalized counters in one pass.
	return s.db.Exec(`
		UPDATE media SET likes_count = (
			SELECT COUNT(*) FROM playlist_items pi
			JOIN playlists p ON p.id = pi.playlist_id
			WHERE pi.media_id = media.id AND p.type = ? AND p.deleted_at IS NULL
		)`, models.PlaylistFavourite).Error
}

func (s *Seeder) seedComments(users []models.User, media []models.Media, count int) error {
	for i := 0; i < count; i++ {
		m := media[rand.Intn(len(media))]
		if m.Status != models.MediaApproved {
			continue
		}
		comment := models.Comment{
			Content: gofakeit.Sentence(8),
			UserID:  users[rand.Intn(len(users))].ID,
			MediaID: m.ID,
		}
		if err := s.db.Create(&comment).Error; err != nil {
			return err
		}
	}

	return s.db.Exec(`
		UPDATE media SET comments_count = (
			SELECT COUNT(*) FROM comments
			WHERE comments.media_id = media.id AND comments.deleted_at IS NULL
		)`).Error
}

func (s *Seeder) seedPlays(users []models.User, media []models.Media, count int) error {
	plays := make([]models.Play, 0, count)
	for i := 0; i < count; i++ {
		m := media[rand.Intn(len(media))]
		if m.Status != models.MediaApproved {
			continue
		}
		plays = append(plays, models.Play{
			UserID:  users[rand.Intn(len(users))].ID,
			MediaID: m.ID,
		})
	}
	return s.db.CreateInBatches(&plays, 200).Error
}

func (s *Seeder) seedMessages(users []models.User, count int) error {
	messages := make([]models.Message, 0, count)
	for i := 0; i < count; i++ {
		sender := users[rand.Intn(len(users))]
		receiver := users[rand.Intn(len(users))]
		if sender.ID == receiver.ID {
			continue
		}
		messages = append(messages, models.Message{
			SenderID:   sender.ID,
			ReceiverID: receiver.ID,
			Content:    gofakeit.Sentence(6),
			SentAt:     time.Now().Add(-time.Duration(rand.Intn(72)) * time.Hour),
		})
	}
	return s.db.CreateInBatches(&messages, 200).Error
}

// Clean removes all seeded rows. Development databases only.
func (s *Seeder) Clean() error {
	tables := []string{
		"notification_items", "notifications", "payment_receipts", "payments",
		"reports", "messages", "plays", "comments", "playlist_items",
		"playlists", "follows", "media", "users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
