package auth

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type AuthServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	db, err := gorm.Open(postgres.Open(testDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping auth tests: database not available (%v)", err)
		return
	}

	database.DB = db

	err = db.AutoMigrate(&models.User{})
	require.NoError(suite.T(), err)

	suite.db = db
	suite.service = NewService([]byte("test_jwt_secret_key"), nil)
}

func (suite *AuthServiceTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM users")
}

func (suite *AuthServiceTestSuite) TestRegisterNativeUser() {
	t := suite.T()

	req := RegisterRequest{
		Email:    "listener@example.com",
		Password: "password123",
		FullName: "Test Listener",
	}

	resp, err := suite.service.RegisterNativeUser(req)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, req.Email, resp.User.Email)
	assert.Equal(t, req.FullName, resp.User.FullName)
	assert.Equal(t, models.RoleUser, resp.User.Role)
	assert.Equal(t, models.UserActive, resp.User.Status)
	assert.NotNil(t, resp.User.PasswordHash)

	// Duplicate email, any case.
	req.Email = "LISTENER@example.com"
	_, err = suite.service.RegisterNativeUser(req)
	assert.ErrorIs(t, err, ErrUserExists)
}

func (suite *AuthServiceTestSuite) TestLoginNativeUser() {
	t := suite.T()

	_, err := suite.service.RegisterNativeUser(RegisterRequest{
		Email:    "login@example.com",
		Password: "correct-horse",
		FullName: "Login Test",
	})
	require.NoError(t, err)

	resp, err := suite.service.LoginNativeUser(LoginRequest{
		Email:    "login@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = suite.service.LoginNativeUser(LoginRequest{
		Email:    "login@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.service.LoginNativeUser(LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func (suite *AuthServiceTestSuite) TestLoginBannedUser() {
	t := suite.T()

	resp, err := suite.service.RegisterNativeUser(RegisterRequest{
		Email:    "banned@example.com",
		Password: "password123",
		FullName: "Banned User",
	})
	require.NoError(t, err)

	suite.db.Model(&models.User{}).Where("id = ?", resp.User.ID).
		Update("status", models.UserBanned)

	_, err = suite.service.LoginNativeUser(LoginRequest{
		Email:    "banned@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrAccountBanned)
}

func (suite *AuthServiceTestSuite) TestValidateToken() {
	t := suite.T()

	resp, err := suite.service.RegisterNativeUser(RegisterRequest{
		Email:    "token@example.com",
		Password: "password123",
		FullName: "Token Test",
	})
	require.NoError(t, err)

	user, err := suite.service.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = suite.service.ValidateToken("not.a.jwt")
	assert.Error(t, err)

	// Tokens from another secret are rejected.
	other := NewService([]byte("different_secret"), nil)
	otherResp, err := other.GenerateTokenForUser(&resp.User)
	require.NoError(t, err)
	_, err = suite.service.ValidateToken(otherResp.Token)
	assert.Error(t, err)
}

func (suite *AuthServiceTestSuite) TestChangePassword() {
	t := suite.T()

	resp, err := suite.service.RegisterNativeUser(RegisterRequest{
		Email:    "change@example.com",
		Password: "oldpassword",
		FullName: "Change Test",
	})
	require.NoError(t, err)

	err = suite.service.ChangePassword(resp.User.ID, "wrongpassword", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = suite.service.ChangePassword(resp.User.ID, "oldpassword", "newpassword1")
	require.NoError(t, err)

	_, err = suite.service.LoginNativeUser(LoginRequest{
		Email:    "change@example.com",
		Password: "newpassword1",
	})
	assert.NoError(t, err)
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func testDSN() string {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")
	dbname := getEnvOrDefault("POSTGRES_DB", "melodix_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return dsn
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
