package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/domain/auth"
	"github.com/FACorreiaa/travesia/internal/app/domain/conversations"
	"github.com/FACorreiaa/travesia/internal/app/domain/itinerary"
	"github.com/FACorreiaa/travesia/internal/app/domain/location"
	"github.com/FACorreiaa/travesia/internal/app/domain/tripchat"
	"github.com/FACorreiaa/travesia/internal/app/gateway"
	"github.com/FACorreiaa/travesia/internal/pkg/config"
	"github.com/FACorreiaa/travesia/internal/pkg/middleware"
)

type AppHandlers struct {
	Auth          *auth.Handlers
	Chat          *tripchat.Handler
	Conversations *conversations.Handler
	Location      *location.Handlers
}

// Setup wires repositories, services and handlers onto the router.
func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) {
	handlers := setupDependencies(dbPool, cfg, log)
	setupRouter(r, dbPool, cfg, handlers, log)
}

func setupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) *AppHandlers {
	authRepo := auth.NewRepository(dbPool, log)
	authService := auth.NewService(authRepo, cfg, log)

	convRepo := conversations.NewRepository(dbPool, log)
	locationService := location.NewService(cfg.Location, log)
	presenter := itinerary.NewService(cfg.Intake.PremiumAirlines, locationService, log)

	gw := gateway.NewClient(cfg.Gateway, log)
	chatStore := tripchat.NewStore(cfg.Intake.SessionTTL)
	chatService := tripchat.NewService(gw, gw, convRepo, presenter, cfg, log)

	return &AppHandlers{
		Auth:          auth.NewHandlers(authService, log),
		Chat:          tripchat.NewHandler(chatService, chatStore, log),
		Conversations: conversations.NewHandler(convRepo, presenter, log),
		Location:      location.NewHandlers(locationService, log),
	}
}

func setupRouter(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, h *AppHandlers, log *zap.Logger) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := dbPool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	optionalAuth := middleware.JWTAuthMiddleware(middleware.JWTConfig{
		SecretKey:       cfg.Auth.SecretKey,
		TokenExpiration: cfg.Auth.TokenExpiration,
		Logger:          log,
		Optional:        true,
	})
	requireAuth := middleware.JWTAuthMiddleware(middleware.JWTConfig{
		SecretKey:       cfg.Auth.SecretKey,
		TokenExpiration: cfg.Auth.TokenExpiration,
		Logger:          log,
	})

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.HandleRegister)
		authGroup.POST("/login", h.Auth.HandleLogin)
		authGroup.GET("/me", requireAuth, h.Auth.HandleMe)
	}

	chatGroup := v1.Group("/chat")
	chatGroup.Use(optionalAuth)
	{
		chatGroup.POST("/message", h.Chat.HandleMessage)
		chatGroup.POST("/pending", h.Chat.HandlePending)
	}

	convGroup := v1.Group("/conversations")
	convGroup.Use(requireAuth)
	{
		convGroup.GET("", h.Conversations.HandleList)
		convGroup.POST("", h.Conversations.HandleCreate)
		convGroup.GET("/:id", h.Chat.HandleOpenConversation)
		convGroup.DELETE("/:id", h.Conversations.HandleDelete)
	}

	tripGroup := v1.Group("/trips")
	tripGroup.Use(requireAuth)
	{
		tripGroup.GET("/:id", h.Conversations.HandleGetTrip)
		tripGroup.GET("/:id/view", h.Conversations.HandleTripView)
		tripGroup.POST("/:id/items", h.Conversations.HandleAddItem)
	}

	v1.GET("/location/lookup", optionalAuth, h.Location.HandleLookup)
}
