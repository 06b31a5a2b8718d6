package mocks

import (
	"context"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) GetPreference(ctx context.Context, userID, key string) ([]byte, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPreferenceStore) SetPreference(ctx context.Context, userID, key string, value []byte) error {
	args := m.Called(ctx, userID, key, value)
	return args.Error(0)
}

func (m *MockPreferenceStore) DeletePreference(ctx context.Context, userID, key string) error {
	args := m.Called(ctx, userID, key)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateUserPoints(ctx context.Context, id string, points int) error {
	args := m.Called(ctx, id, points)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateUserAvatar(ctx context.Context, id string, avatarURL string) error {
	args := m.Called(ctx, id, avatarURL)
	return args.Error(0)
}

func (m *MockUserRepository) TouchLastAuth(ctx context.Context, id string, authDate time.Time) error {
	args := m.Called(ctx, id, authDate)
	return args.Error(0)
}
