package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/melodix/backend/internal/auth"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/util"
	"go.uber.org/zap"
)

// Register creates a new account with email and password
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.RegisterNativeUser(req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			util.RespondConflict(c, "account")
			return
		}
		logger.ErrorWithFields("registration failed", err)
		util.RespondInternalError(c, "failed to register")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with email and password
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.LoginNativeUser(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			util.RespondUnauthorized(c, "invalid email or password")
		case errors.Is(err, auth.ErrAccountBanned):
			util.RespondForbidden(c, "account is banned")
		case errors.Is(err, auth.ErrAccountInactive):
			util.RespondForbidden(c, "account is inactive")
		default:
			logger.ErrorWithFields("login failed", err)
			util.RespondInternalError(c, "failed to log in")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user's profile
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword updates the authenticated user's password
// PUT /api/v1/auth/password
func (h *Handlers) ChangePassword(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			util.RespondUnauthorized(c, "current password is incorrect")
			return
		}
		logger.ErrorWithFields("password change failed", err)
		util.RespondInternalError(c, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// GoogleLogin redirects the browser to the Google consent screen
// GET /api/v1/auth/google
func (h *Handlers) GoogleLogin(c *gin.Context) {
	state := uuid.New().String()
	// State round-trips through a short-lived cookie
	c.SetCookie("oauth_state", state, 300, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.auth.GetGoogleOAuthURL(state))
}

// GoogleCallback handles the provider redirect, issues a one-time exchange
// code and forwards the browser to the web app.
// GET /api/v1/auth/google/callback
func (h *Handlers) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	cookieState, err := c.Cookie("oauth_state")
	if err != nil || state == "" || state != cookieState {
		util.RespondBadRequest(c, "oauth state mismatch")
		return
	}

	code := c.Query("code")
	if code == "" {
		util.RespondBadRequest(c, "missing authorization code")
		return
	}

	resp, err := h.auth.HandleGoogleCallback(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountBanned):
			util.RespondForbidden(c, "account is banned")
		case errors.Is(err, auth.ErrAccountInactive):
			util.RespondForbidden(c, "account is inactive")
		default:
			logger.Log.Error("google callback failed", zap.Error(err))
			util.RespondInternalError(c, "google sign-in failed")
		}
		return
	}

	exchangeCode, err := h.auth.IssueExchangeCode(c.Request.Context(), resp)
	if err != nil {
		logger.ErrorWithFields("failed to issue exchange code", err)
		util.RespondInternalError(c, "google sign-in failed")
		return
	}

	c.Redirect(http.StatusTemporaryRedirect,
		fmt.Sprintf("%s/auth/callback?code=%s", h.frontendURL, exchangeCode))
}

// GoogleExchange trades a one-time code for a session token
// POST /api/v1/auth/google/exchange
func (h *Handlers) GoogleExchange(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.RedeemExchangeCode(c.Request.Context(), req.Code)
	if err != nil {
		util.RespondUnauthorized(c, "invalid or expired exchange code")
		return
	}

	c.JSON(http.StatusOK, resp)
}
