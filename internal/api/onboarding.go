package api

import (
	"errors"
	"net/http"

	"github.com/allthriveai/allthriveai-sub012/internal/middleware"
	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/service"
	"github.com/allthriveai/allthriveai-sub012/pkg/auth"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type onboardingRoutes struct {
	os service.OnboardingServiceI
	a  *auth.Auth
}

func NewOnboardingRoutes(handler *gin.RouterGroup, os service.OnboardingServiceI, a *auth.Auth, admin *middleware.Authorization) {
	r := &onboardingRoutes{os: os, a: a}
	h := handler.Group("/onboarding")
	h.Use(a.Middleware())
	{
		h.GET("/", r.GetStatus)
		h.POST("/modal-seen", r.MarkModalSeen)
		h.POST("/adventures/:adventure_id/complete", r.CompleteAdventure)
		h.GET("/adventures/:adventure_id", r.GetAdventureStatus)
		h.POST("/dismiss", r.Dismiss)
		h.POST("/welcome-points", r.AwardWelcomePoints)
	}

	// Support tooling resets another user's record.
	adminGroup := handler.Group("/admin")
	adminGroup.Use(a.Middleware(), admin.AdminOnly())
	{
		adminGroup.DELETE("/onboarding/:user_id", r.Reset)
	}
}

func statusResponse(status *model.OnboardingStatus) gin.H {
	completed := status.Record.CompletedAdventures
	if completed == nil {
		completed = []model.AdventureID{}
	}

	return gin.H{
		"has_seen_modal":          status.Record.HasSeenModal,
		"completed_adventures":    completed,
		"is_dismissed":            status.Record.IsDismissed,
		"welcome_points_awarded":  status.Record.WelcomePointsAwarded,
		"should_show_modal":       status.ShouldShowModal,
		"should_show_banner":      status.ShouldShowBanner,
		"all_adventures_complete": status.AllAdventuresComplete,
	}
}

func (r *onboardingRoutes) GetStatus(c *gin.Context) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status := r.os.Status(c.Request.Context(), user.ID)
	c.JSON(http.StatusOK, statusResponse(status))
}

func (r *onboardingRoutes) MarkModalSeen(c *gin.Context) {
	log := logger.Logger()

	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := r.os.MarkModalSeen(c.Request.Context(), user.ID); err != nil {
		log.Error("failed to mark modal seen", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark modal seen"})
		return
	}

	c.JSON(http.StatusOK, statusResponse(r.os.Status(c.Request.Context(), user.ID)))
}

func (r *onboardingRoutes) CompleteAdventure(c *gin.Context) {
	log := logger.Logger()

	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	adventureID := model.AdventureID(c.Param("adventure_id"))

	err := r.os.CompleteAdventure(c.Request.Context(), user.ID, adventureID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownAdventure) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown adventure"})
			return
		}
		log.Error("failed to complete adventure",
			zap.String("adventure_id", string(adventureID)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete adventure"})
		return
	}

	c.JSON(http.StatusOK, statusResponse(r.os.Status(c.Request.Context(), user.ID)))
}

func (r *onboardingRoutes) GetAdventureStatus(c *gin.Context) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	adventureID := model.AdventureID(c.Param("adventure_id"))

	c.JSON(http.StatusOK, gin.H{
		"adventure_id": adventureID,
		"completed":    r.os.IsAdventureComplete(c.Request.Context(), user.ID, adventureID),
	})
}

func (r *onboardingRoutes) Dismiss(c *gin.Context) {
	log := logger.Logger()

	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := r.os.DismissOnboarding(c.Request.Context(), user.ID); err != nil {
		log.Error("failed to dismiss onboarding", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dismiss onboarding"})
		return
	}

	c.JSON(http.StatusOK, statusResponse(r.os.Status(c.Request.Context(), user.ID)))
}

func (r *onboardingRoutes) AwardWelcomePoints(c *gin.Context) {
	log := logger.Logger()

	user, ok := auth.UserFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	err := r.os.AwardWelcomePoints(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error("failed to award welcome points", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to award welcome points"})
		return
	}

	c.JSON(http.StatusOK, statusResponse(r.os.Status(c.Request.Context(), user.ID)))
}

func (r *onboardingRoutes) Reset(c *gin.Context) {
	log := logger.Logger()

	targetID := c.Param("user_id")

	if err := r.os.ResetOnboarding(c.Request.Context(), targetID); err != nil {
		log.Error("failed to reset onboarding",
			zap.String("user_id", targetID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset onboarding"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "onboarding reset successful",
		"user_id": targetID,
	})
}
