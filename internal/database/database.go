package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/melodix/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "melodix")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	// Configure GORM logger
	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	// Open database connection
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("✅ Database connected successfully")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// gen_random_uuid() needs pgcrypto on older Postgres
	err := DB.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error
	if err != nil {
		log.Printf("Warning: Could not create pgcrypto extension: %v", err)
	}

	// Auto-migrate all models
	err = DB.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Media{},
		&models.Play{},
		&models.Playlist{},
		&models.PlaylistItem{},
		&models.Comment{},
		&models.Message{},
		&models.Report{},
		&models.Payment{},
		&models.PaymentReceipt{},
		&models.Notification{},
		&models.NotificationItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes for performance
	err = createIndexes()
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// createIndexes creates performance and uniqueness indexes
func createIndexes() error {
	// User indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_role ON users (role)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_status ON users (status)")

	// Media indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_media_created_by ON media (created_by)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_media_status ON media (status)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_media_type_genre ON media (type, genre)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_media_created_at ON media (created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_plays_media_id ON plays (media_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_plays_user_id ON plays (user_id)")

	// Playlist indexes; a user gets at most one live favourite playlist
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_playlists_owner_id ON playlists (owner_id)")
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_one_favourite " +
		"ON playlists (owner_id) WHERE type = 'favourite' AND deleted_at IS NULL")

	// Social indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_follows_followee_id ON follows (followee_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_media_id ON comments (media_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_parent_id ON comments (parent_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_messages_receiver_sent ON messages (receiver_id, sent_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_messages_sender_sent ON messages (sender_id, sent_at DESC)")

	// One report per user per media
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_media_reporter " +
		"ON reports (media_id, reporter_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_reports_status ON reports (status)")

	// Payment indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_payments_requester_status ON payments (requester_id, status)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_payment_receipts_buyer_id ON payment_receipts (buyer_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_payment_receipts_seller_id ON payment_receipts (seller_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_payment_receipts_payment_id ON payment_receipts (payment_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_payment_receipts_item ON payment_receipts (item_type, item_id)")

	// Notification indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_notifications_receiver_read ON notifications (receiver_id, is_read)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_notification_items_notification_id ON notification_items (notification_id)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
