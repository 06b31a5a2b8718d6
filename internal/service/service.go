package service

import (
	"context"
	"errors"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/avatar"
	"github.com/allthriveai/allthriveai-sub012/internal/model"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already registered")
	ErrUnknownAdventure   = errors.New("unknown adventure")
	ErrNoIteration        = errors.New("no generated iteration to accept")
	ErrSessionUnavailable = errors.New("avatar session unavailable")
	ErrUnknownPath        = errors.New("unknown path")
)

type Service struct {
	*UserService
	*OnboardingService
}

func NewService(userService *UserService, onboardingService *OnboardingService) *Service {
	return &Service{
		UserService:       userService,
		OnboardingService: onboardingService,
	}
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserPoints(ctx context.Context, id string, points int) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserPoints(ctx context.Context, id string, points int) error
	UpdateUserAvatar(ctx context.Context, id string, avatarURL string) error
	TouchLastAuth(ctx context.Context, id string, authDate time.Time) error
}

type OnboardingServiceI interface {
	Status(ctx context.Context, userID string) *model.OnboardingStatus
	MarkModalSeen(ctx context.Context, userID string) error
	CompleteAdventure(ctx context.Context, userID string, id model.AdventureID) error
	DismissOnboarding(ctx context.Context, userID string) error
	AwardWelcomePoints(ctx context.Context, userID string) error
	ResetOnboarding(ctx context.Context, userID string) error
	IsAdventureComplete(ctx context.Context, userID string, id model.AdventureID) bool
}

// PreferenceStore is the per-user key-value store behind the
// onboarding record. Implementations may be SQL-backed or in-memory.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID, key string) ([]byte, error)
	SetPreference(ctx context.Context, userID, key string, value []byte) error
	DeletePreference(ctx context.Context, userID, key string) error
}

// AvatarSession is the orchestrator's view of one live generation
// session. Results arrive through the callbacks given at start.
type AvatarSession interface {
	Generate(prompt, referenceImageURL string) error
	Accept(ctx context.Context, iterationID uuid.UUID) error
	Abandon()
	Disconnect()
}

// AvatarSessionStarter dials generation sessions.
type AvatarSessionStarter interface {
	StartSession(ctx context.Context, userID string, opts avatar.SessionOptions, cb avatar.Callbacks) (AvatarSession, error)
}

// AvatarStarterFunc adapts a dial function to AvatarSessionStarter.
type AvatarStarterFunc func(ctx context.Context, userID string, opts avatar.SessionOptions, cb avatar.Callbacks) (AvatarSession, error)

func (f AvatarStarterFunc) StartSession(ctx context.Context, userID string, opts avatar.SessionOptions, cb avatar.Callbacks) (AvatarSession, error) {
	return f(ctx, userID, opts, cb)
}
