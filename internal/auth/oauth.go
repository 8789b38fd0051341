package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/melodix/backend/internal/cache"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// exchangeCodeTTL bounds the window between the OAuth callback redirect
// and the frontend trading its one-time code for a JWT.
const exchangeCodeTTL = 5 * time.Minute

// GoogleUserInfo represents Google OAuth user response
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// HandleGoogleCallback exchanges the provider code, unifies the account by
// email and returns an authenticated session.
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error) {
	userInfo, err := s.getGoogleUserInfo(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google user info: %w", err)
	}

	return s.findOrCreateGoogleUser(userInfo)
}

// getGoogleUserInfo trades the authorization code for the OpenID profile
func (s *Service) getGoogleUserInfo(ctx context.Context, code string) (*GoogleUserInfo, error) {
	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	client := s.googleConfig.Client(ctx, token)
	resp, err := client.Get("https://openidconnect.googleapis.com/v1/userinfo")
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo request returned %d: %s", resp.StatusCode, string(body))
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google account has no email")
	}

	return &info, nil
}

// findOrCreateGoogleUser implements email-based account unification
func (s *Service) findOrCreateGoogleUser(info *GoogleUserInfo) (*AuthResponse, error) {
	// Already linked by Google subject
	var user models.User
	err := database.DB.Where("google_id = ?", info.Sub).First(&user).Error
	if err == nil {
		if statusErr := checkAccountStatus(&user); statusErr != nil {
			return nil, statusErr
		}
		return s.generateAuthResponse(&user)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error checking google link: %w", err)
	}

	// Existing account with the same email gets the Google identity attached
	existing, err := s.FindUserByEmail(info.Email)
	if err == nil {
		if statusErr := checkAccountStatus(existing); statusErr != nil {
			return nil, statusErr
		}
		existing.GoogleID = &info.Sub
		if existing.AvatarURL == "" && info.Picture != "" {
			existing.AvatarURL = info.Picture
		}
		if saveErr := database.DB.Save(existing).Error; saveErr != nil {
			return nil, fmt.Errorf("failed to link google account: %w", saveErr)
		}
		logger.Log.Info("Linked Google identity to existing account",
			zap.String("user_id", existing.ID))
		return s.generateAuthResponse(existing)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("database error finding user: %w", err)
	}

	// Fresh account, no password until the user claims one
	newUser := models.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		FullName:  info.Name,
		GoogleID:  &info.Sub,
		AvatarURL: info.Picture,
		Role:      models.RoleUser,
		Status:    models.UserActive,
	}
	if err := database.DB.Create(&newUser).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Log.Info("Created account from Google OAuth",
		zap.String("user_id", newUser.ID))
	return s.generateAuthResponse(&newUser)
}

// IssueExchangeCode stores the JWT behind a one-time code so the token never
// rides an HTTP redirect URL.
func (s *Service) IssueExchangeCode(ctx context.Context, authResp *AuthResponse) (string, error) {
	rc := cache.GetRedisClient()
	if rc == nil {
		return "", errors.New("redis not available")
	}

	code := uuid.New().String()
	if err := rc.SetEx(ctx, "oauth:exchange:"+code, authResp.Token, exchangeCodeTTL); err != nil {
		return "", fmt.Errorf("failed to store exchange code: %w", err)
	}
	return code, nil
}

// RedeemExchangeCode consumes a one-time code and returns the session
func (s *Service) RedeemExchangeCode(ctx context.Context, code string) (*AuthResponse, error) {
	rc := cache.GetRedisClient()
	if rc == nil {
		return nil, errors.New("redis not available")
	}

	token, err := rc.GetDel(ctx, "oauth:exchange:"+code)
	if err != nil {
		if cache.IsNil(err) {
			return nil, errors.New("invalid or expired exchange code")
		}
		return nil, fmt.Errorf("failed to redeem exchange code: %w", err)
	}

	user, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return s.generateAuthResponse(user)
}
