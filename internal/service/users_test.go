package service

import (
	"context"
	"testing"

	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/repository"
	"github.com/allthriveai/allthriveai-sub012/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUserService_RegisterUser(t *testing.T) {
	repo := new(mocks.MockUserRepository)
	svc := NewUserService(repo)

	user := &model.User{ID: "u1", Username: "riley"}
	repo.On("CreateUser", mock.Anything, user).Return(nil)

	err := svc.RegisterUser(context.Background(), user)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUserService_RegisterUser_ExistingTouchesAuthDate(t *testing.T) {
	repo := new(mocks.MockUserRepository)
	svc := NewUserService(repo)

	user := &model.User{ID: "u1", Username: "riley"}
	repo.On("CreateUser", mock.Anything, user).Return(repository.ErrAlreadyExists)
	repo.On("TouchLastAuth", mock.Anything, "u1", mock.Anything).Return(nil)

	err := svc.RegisterUser(context.Background(), user)

	assert.ErrorIs(t, err, ErrUserExists)
	repo.AssertExpectations(t)
}

func TestUserService_GetUserByID_NotFound(t *testing.T) {
	repo := new(mocks.MockUserRepository)
	svc := NewUserService(repo)

	repo.On("GetUserByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	_, err := svc.GetUserByID(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrUserNotFound)
}
