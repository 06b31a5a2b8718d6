package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/api"
	"github.com/allthriveai/allthriveai-sub012/internal/avatar"
	"github.com/allthriveai/allthriveai-sub012/internal/middleware"
	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/repository"
	"github.com/allthriveai/allthriveai-sub012/internal/service"
	"github.com/allthriveai/allthriveai-sub012/pkg/auth"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	adventures := make([]model.AdventureID, 0, len(cfg.Adventures))
	for _, a := range cfg.Adventures {
		adventures = append(adventures, model.AdventureID(a))
	}

	userService := service.NewUserService(repo)
	onboardingService := service.NewOnboardingService(repo, repo, adventures)

	avatarClient := avatar.NewClient(cfg.Avatar)
	starter := service.AvatarStarterFunc(func(ctx context.Context, userID string, opts avatar.SessionOptions, cb avatar.Callbacks) (service.AvatarSession, error) {
		return avatarClient.StartSession(ctx, userID, opts, cb)
	})

	platformAuth := auth.New(cfg.Auth.JWTSecret, cfg.Auth.DebugMode)
	adminOnly := middleware.NewAuthorization(userService)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, userService, platformAuth)
	api.NewOnboardingRoutes(a, onboardingService, platformAuth, adminOnly)
	api.NewChatRoutes(a, onboardingService, userService, repo, starter, cfg.Chat, platformAuth)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
