package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account is banned")
	ErrAccountInactive    = errors.New("account is inactive")
)

// Service handles all authentication operations
type Service struct {
	jwtSecret    []byte
	googleConfig *oauth2.Config
}

// NewService creates a new authentication service
func NewService(jwtSecret []byte, googleConfig *oauth2.Config) *Service {
	return &Service{
		jwtSecret:    jwtSecret,
		googleConfig: googleConfig,
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RegisterRequest represents native registration request
type RegisterRequest struct {
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	FullName string     `json:"full_name" binding:"required,min=1,max=100"`
	Birthday *time.Time `json:"birthday"`
	Address  string     `json:"address"`
}

// LoginRequest represents native login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterNativeUser creates a new user with email/password
func (s *Service) RegisterNativeUser(req RegisterRequest) (*AuthResponse, error) {
	// Check if user exists by email (case-insensitive)
	var existingUser models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existingUser).Error

	if err == nil {
		// Google-only accounts may claim a password later
		if existingUser.PasswordHash == nil {
			return s.addPasswordToOAuthUser(&existingUser, req.Password)
		}
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashedPasswordStr := string(hashedPassword)
	user := models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: &hashedPasswordStr,
		Birthday:     req.Birthday,
		Address:      req.Address,
		Role:         models.RoleUser,
		Status:       models.UserActive,
	}

	err = database.DB.Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user)
}

// LoginNativeUser authenticates with email/password
func (s *Service) LoginNativeUser(req LoginRequest) (*AuthResponse, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Check if user has a password (might be OAuth-only)
	if user.PasswordHash == nil {
		return nil, errors.New("account exists but no password set - try Google login")
	}

	// Verify password
	err = bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := checkAccountStatus(&user); err != nil {
		return nil, err
	}

	return s.generateAuthResponse(&user)
}

// FindUserByEmail finds user by email (case-insensitive)
func (s *Service) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", email).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &user, nil
}

// ChangePassword verifies the current password and sets a new one
func (s *Service) ChangePassword(userID, currentPassword, newPassword string) error {
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if user.PasswordHash == nil {
		return errors.New("account has no password set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	hashedStr := string(hashed)
	user.PasswordHash = &hashedStr
	if err := database.DB.Save(&user).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// addPasswordToOAuthUser adds password to OAuth-only account
func (s *Service) addPasswordToOAuthUser(user *models.User, password string) (*AuthResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashedPasswordStr := string(hashedPassword)
	user.PasswordHash = &hashedPasswordStr

	err = database.DB.Save(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return s.generateAuthResponse(user)
}

// GenerateTokenForUser creates JWT token and auth response for a user
func (s *Service) GenerateTokenForUser(user *models.User) (*AuthResponse, error) {
	return s.generateAuthResponse(user)
}

// generateAuthResponse creates JWT token and auth response
func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	expiresAt := time.Now().Add(24 * time.Hour) // 24 hour tokens

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns user info
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid user_id in token")
	}

	// Fetch fresh user data so bans and role changes take effect immediately
	var user models.User
	err = database.DB.Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if err := checkAccountStatus(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetGoogleOAuthURL returns Google OAuth authorization URL
func (s *Service) GetGoogleOAuthURL(state string) string {
	return s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func checkAccountStatus(user *models.User) error {
	switch user.Status {
	case models.UserBanned:
		return ErrAccountBanned
	case models.UserInactive:
		return ErrAccountInactive
	}
	return nil
}
