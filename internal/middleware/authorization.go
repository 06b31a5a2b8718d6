package middleware

import (
	"net/http"

	"github.com/allthriveai/allthriveai-sub012/internal/service"
	"github.com/allthriveai/allthriveai-sub012/pkg/auth"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type Authorization struct {
	userService service.UserServiceI
}

func NewAuthorization(userService service.UserServiceI) *Authorization {
	return &Authorization{
		userService: userService,
	}
}

func (a *Authorization) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		userData, exists := auth.UserFromContext(c)
		if !exists {
			log.Error("platform user data not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := a.userService.GetUserByID(c.Request.Context(), userData.ID)
		if err != nil {
			log.Error("failed to get user data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if !user.IsAdmin {
			log.Info("unauthorized access attempt to admin endpoint",
				zap.String("user_id", userData.ID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("is_admin", true)
		c.Next()
	}
}
