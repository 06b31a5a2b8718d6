package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/repository"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"
)

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

func (s *UserService) RegisterUser(ctx context.Context, user *model.User) error {
	err := s.repo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// Re-registration is a fresh login; keep the auth date
			// current before rejecting.
			if touchErr := s.repo.TouchLastAuth(ctx, user.ID, time.Now().UTC()); touchErr != nil {
				logger.Logger().Warn("failed to update last auth date",
					zap.String("user_id", user.ID),
					zap.Error(touchErr))
			}
			return ErrUserExists
		}
		return fmt.Errorf("failed to register user: %w", err)
	}

	return nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateUserPoints(ctx context.Context, id string, points int) error {
	err := s.repo.UpdateUserPoints(ctx, id, points)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update user points: %w", err)
	}
	return nil
}
