package handlers

import (
	"github.com/melodix/backend/internal/auth"
	"github.com/melodix/backend/internal/moderation"
	"github.com/melodix/backend/internal/notify"
	"github.com/melodix/backend/internal/payments"
	"github.com/melodix/backend/internal/storage"
	"github.com/melodix/backend/internal/websocket"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth        auth.ServiceInterface
	payments    *payments.Service
	moderation  *moderation.Service
	notify      *notify.Service
	uploader    storage.MediaUploader
	wsHandler   *websocket.Handler
	frontendURL string
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService auth.ServiceInterface, paymentService *payments.Service, moderationService *moderation.Service, notifyService *notify.Service) *Handlers {
	return &Handlers{
		auth:       authService,
		payments:   paymentService,
		moderation: moderationService,
		notify:     notifyService,
	}
}

// SetUploader sets the media storage backend
func (h *Handlers) SetUploader(uploader storage.MediaUploader) {
	h.uploader = uploader
}

// SetWebSocketHandler sets the WebSocket handler for real-time delivery
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
}

// SetFrontendURL sets the web app base URL used for OAuth redirects
func (h *Handlers) SetFrontendURL(url string) {
	h.frontendURL = url
}
