package auth

import (
	"context"

	"github.com/melodix/backend/internal/models"
)

// ServiceInterface defines the contract for authentication operations.
// This enables mocking for unit tests without requiring a real database.
type ServiceInterface interface {
	// Registration and Login
	RegisterNativeUser(req RegisterRequest) (*AuthResponse, error)
	LoginNativeUser(req LoginRequest) (*AuthResponse, error)

	// User lookup
	FindUserByEmail(email string) (*models.User, error)

	// Token operations
	ValidateToken(tokenString string) (*models.User, error)
	GenerateTokenForUser(user *models.User) (*AuthResponse, error)
	ChangePassword(userID, currentPassword, newPassword string) error

	// Google OAuth
	GetGoogleOAuthURL(state string) string
	HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error)
	IssueExchangeCode(ctx context.Context, authResp *AuthResponse) (string, error)
	RedeemExchangeCode(ctx context.Context, code string) (*AuthResponse, error)
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
