package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/melodix/backend/internal/auth"
	"github.com/melodix/backend/internal/cache"
	"github.com/melodix/backend/internal/config"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/email"
	"github.com/melodix/backend/internal/handlers"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/metrics"
	"github.com/melodix/backend/internal/middleware"
	"github.com/melodix/backend/internal/moderation"
	"github.com/melodix/backend/internal/notify"
	"github.com/melodix/backend/internal/payments"
	"github.com/melodix/backend/internal/storage"
	"github.com/melodix/backend/internal/telemetry"
	"github.com/melodix/backend/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func main() {
	// .env is optional outside development.
	_ = godotenv.Load()

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Close()

	logger.Log.Info("melodix server starting")

	metrics.Initialize()

	tracerProvider, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "melodix-backend",
		Environment:  os.Getenv("ENVIRONMENT"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		Enabled:      os.Getenv("TRACING_ENABLED") == "true",
		SamplingRate: envFloat("TRACING_SAMPLE_RATE", 1.0),
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	if err := database.Initialize(); err != nil {
		logger.Log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(
		os.Getenv("REDIS_HOST"),
		os.Getenv("REDIS_PORT"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		logger.Log.Warn("redis unavailable, rate limiting and caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	var googleConfig *oauth2.Config
	if oauthConfig, err := config.LoadOAuthConfig(); err != nil {
		logger.Log.Warn("google oauth disabled", zap.Error(err))
	} else {
		googleConfig = oauthConfig.GoogleConfig
	}
	authService := auth.NewService(jwtSecret, googleConfig)

	var emailService *email.Service
	if os.Getenv("SES_FROM_EMAIL") != "" {
		emailService, err = email.NewService(
			os.Getenv("AWS_REGION"),
			os.Getenv("SES_FROM_EMAIL"),
			os.Getenv("SES_FROM_NAME"),
			os.Getenv("FRONTEND_URL"),
		)
		if err != nil {
			logger.Log.Warn("email disabled", zap.Error(err))
			emailService = nil
		}
	}

	charger := payments.NewStripeCharger(os.Getenv("STRIPE_SECRET_KEY"))
	paymentService := payments.NewService(charger, emailService, envInt64("VIP_PRICE_CENTS", 0))

	moderationService := moderation.NewService()

	wsHub := websocket.NewHub()
	websocket.RegisterChatHandler(wsHub)
	go wsHub.Run()
	wsHandler := websocket.NewHandler(wsHub, jwtSecret)

	notifyService := notify.NewService(wsHub)

	h := handlers.NewHandlers(authService, paymentService, moderationService, notifyService)
	h.SetWebSocketHandler(wsHandler)
	h.SetFrontendURL(os.Getenv("FRONTEND_URL"))

	if os.Getenv("AWS_BUCKET") != "" {
		uploader, err := storage.NewS3Uploader(
			os.Getenv("AWS_REGION"),
			os.Getenv("AWS_BUCKET"),
			os.Getenv("CDN_BASE_URL"),
		)
		if err != nil {
			logger.Log.Warn("s3 unavailable, uploads disabled", zap.Error(err))
		} else {
			h.SetUploader(uploader)
		}
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(otelgin.Middleware("melodix-backend"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsConfig.AllowOrigins = []string{origins}
	} else {
		corsConfig.AllowOrigins = []string{"*"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "melodix-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.AuthRequired(authService)

	api := r.Group("/api/v1")
	api.Use(middleware.RedisRateLimitMiddleware(300, time.Minute))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.GET("/google", h.GoogleLogin)
			authGroup.GET("/google/callback", h.GoogleCallback)
			authGroup.POST("/google/exchange", h.GoogleExchange)
			authGroup.GET("/me", authRequired, h.Me)
			authGroup.PUT("/password", authRequired, h.ChangePassword)
		}

		users := api.Group("/users")
		{
			users.Use(authRequired)
			users.PUT("/me", h.UpdateProfile)
			users.POST("/me/avatar", h.UploadAvatar)
			users.PUT("/me/payout", h.UpdatePayoutDetails)
			users.GET("/me/vip-status", h.VIPStatus)
			users.GET("/:id", h.GetUser)
			users.POST("/:id/follow", h.FollowUser)
			users.DELETE("/:id/follow", h.UnfollowUser)
			users.GET("/:id/followers", h.ListFollowers)
			users.GET("/:id/following", h.ListFollowing)
		}

		media := api.Group("/media")
		{
			media.Use(authRequired)
			media.POST("", h.UploadMedia)
			media.GET("", h.ListCatalog)
			media.GET("/mine", h.MyMedia)
			media.GET("/feed", h.Feed)
			media.GET("/purchased", h.PurchasedMedia)
			media.GET("/favourites", h.GetFavourites)
			media.GET("/:id", h.GetMedia)
			media.PUT("/:id", h.UpdateMedia)
			media.DELETE("/:id", h.DeleteMedia)
			media.POST("/:id/play", h.RecordPlay)
			media.POST("/:id/like", h.LikeMedia)
			media.DELETE("/:id/like", h.UnlikeMedia)
			media.POST("/:id/report", h.FileReport)
			media.POST("/:id/comments", h.CreateComment)
			media.GET("/:id/comments", h.ListComments)
		}

		comments := api.Group("/comments")
		{
			comments.Use(authRequired)
			comments.DELETE("/:id", h.DeleteComment)
		}

		playlists := api.Group("/playlists")
		{
			playlists.Use(authRequired)
			playlists.POST("", h.CreatePlaylist)
			playlists.GET("", h.ListPlaylists)
			playlists.GET("/:id", h.GetPlaylist)
			playlists.PUT("/:id", h.UpdatePlaylist)
			playlists.DELETE("/:id", h.DeletePlaylist)
			playlists.POST("/:id/items", h.AddPlaylistItem)
			playlists.DELETE("/:id/items/:mediaID", h.RemovePlaylistItem)
		}

		chat := api.Group("/chat")
		{
			chat.Use(authRequired)
			chat.GET("", h.ListConversations)
			chat.GET("/:userID/messages", h.GetConversation)
			chat.POST("/:userID/messages", h.SendChatMessage)
		}

		purchases := api.Group("/purchases")
		{
			purchases.Use(authRequired)
			purchases.POST("", h.Purchase)
			purchases.GET("", h.ListMyReceipts)
		}

		paymentsGroup := api.Group("/payments")
		{
			paymentsGroup.Use(authRequired)
			paymentsGroup.GET("", h.ListMyPayments)
			paymentsGroup.POST("/request", h.RequestPayout)
			paymentsGroup.GET("/:id", h.GetPayment)
		}

		notifications := api.Group("/notifications")
		{
			notifications.Use(authRequired)
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread-count", h.UnreadNotificationCount)
			notifications.PUT("/read-all", h.MarkAllNotificationsRead)
			notifications.PUT("/:id/read", h.MarkNotificationRead)
			notifications.DELETE("/:id", h.DeleteNotification)
		}

		admin := api.Group("/admin")
		{
			admin.Use(authRequired, middleware.RequireStaff())
			admin.GET("/dashboard", h.Dashboard)
			admin.GET("/dashboard/recent", h.RecentActivity)
			admin.GET("/users", h.ListUsers)
			admin.GET("/users/vip", h.ListVIPUsers)
			admin.PUT("/users/:id/status", h.UpdateUserStatus)
			admin.PUT("/users/:id/role", middleware.RequireAdmin(), h.UpdateUserRole)
			admin.DELETE("/users/:id", middleware.RequireAdmin(), h.DeleteUser)
			admin.GET("/media/pending", h.ListPendingMedia)
			admin.GET("/media/:id/reports", h.ListMediaReports)
			admin.PUT("/media/:id/review", h.ReviewMedia)
			admin.GET("/reports", h.ListReports)
			admin.PUT("/reports/:id/review", h.ReviewReport)
			admin.DELETE("/reports/:id", h.DeleteReport)
			admin.GET("/payments", h.ListAllPayments)
			admin.PUT("/payments/:id/decide", h.DecidePayment)
			admin.POST("/notifications/broadcast", middleware.RequireAdmin(), h.BroadcastNotification)
		}

		ws := api.Group("/ws")
		{
			ws.GET("", wsHandler.HandleWebSocket)
			ws.GET("/stats", authRequired, middleware.RequireStaff(), wsHandler.HandleStats)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("http shutdown error", zap.Error(err))
	}
	if err := wsHub.Shutdown(ctx); err != nil {
		logger.Log.Error("websocket shutdown error", zap.Error(err))
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Log.Info("goodbye")
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
