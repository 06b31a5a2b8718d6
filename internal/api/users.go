package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/service"
	"github.com/allthriveai/allthriveai-sub012/pkg/auth"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type userRoutes struct {
	us service.UserServiceI
	a  *auth.Auth
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.Auth) {
	r := &userRoutes{us: us, a: a}
	h := handler.Group("/users")
	h.Use(a.Middleware())
	{
		h.POST("/", r.RegisterUser)
		h.GET("/:user_id", r.GetUserByID)
	}
}

type RegisterUserRequest struct {
	DisplayName string `json:"display_name"`
}

type RegisterUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, ok := auth.UserFromContext(c)
	if !ok {
		log.Error("platform user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = user.DisplayName
	}

	now := time.Now().UTC()
	u := &model.User{
		ID:               user.ID,
		Username:         user.Username,
		DisplayName:      displayName,
		RegistrationDate: now,
		LastAuthDate:     now,
	}

	err := r.us.RegisterUser(c.Request.Context(), u)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already registered"})
			return
		}
		log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	out := RegisterUserResponse{
		ID:       u.ID,
		Username: u.Username,
	}

	c.JSON(http.StatusCreated, out)
}

func (r *userRoutes) GetUserByID(c *gin.Context) {
	log := logger.Logger()

	id := c.Param("user_id")

	user, err := r.us.GetUserByID(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no user associated with the provided user_id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                user.ID,
		"username":          user.Username,
		"display_name":      user.DisplayName,
		"points":            user.Points,
		"avatar_url":        user.AvatarURL,
		"registration_date": user.RegistrationDate,
		"last_auth_date":    user.LastAuthDate,
	})
}
