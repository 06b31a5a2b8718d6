package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/repository"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"
)

const (
	// prefKeyOnboarding is where the onboarding record lives in the
	// preference store.
	prefKeyOnboarding = "onboarding"

	// WelcomeReward is the one-time points grant for new creators.
	WelcomeReward = 500
)

// OnboardingService tracks each creator's first-run progress and
// derives what guided UI to show. Every mutation goes through a named
// transition; the UI layer never writes fields directly.
//
// Persistence is fail-open: an unreadable or corrupt record falls back
// to defaults (the guided flow shows again) rather than erroring, and
// a failed write is logged and lost until the next mutation.
type OnboardingService struct {
	prefs      PreferenceStore
	users      UserRepository
	adventures []model.AdventureID
}

func NewOnboardingService(prefs PreferenceStore, users UserRepository, adventures []model.AdventureID) *OnboardingService {
	if len(adventures) == 0 {
		adventures = model.DefaultAdventures
	}
	return &OnboardingService{
		prefs:      prefs,
		users:      users,
		adventures: adventures,
	}
}

// Adventures returns the configured catalog.
func (s *OnboardingService) Adventures() []model.AdventureID {
	out := make([]model.AdventureID, len(s.adventures))
	copy(out, s.adventures)
	return out
}

func (s *OnboardingService) load(ctx context.Context, userID string) model.OnboardingRecord {
	raw, err := s.prefs.GetPreference(ctx, userID, prefKeyOnboarding)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Logger().Warn("failed to load onboarding record, using defaults",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return model.OnboardingRecord{}
	}

	var rec model.OnboardingRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.Logger().Warn("corrupt onboarding record, using defaults",
			zap.String("user_id", userID),
			zap.Error(err))
		return model.OnboardingRecord{}
	}

	return rec
}

func (s *OnboardingService) save(ctx context.Context, userID string, rec model.OnboardingRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := s.prefs.SetPreference(ctx, userID, prefKeyOnboarding, raw); err != nil {
		// Lost until the next mutation writes again.
		logger.Logger().Warn("failed to persist onboarding record",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return nil
}

// Status returns the record with its derived visibility flags. The
// flags are recomputed here on every call and never stored.
func (s *OnboardingService) Status(ctx context.Context, userID string) *model.OnboardingStatus {
	rec := s.load(ctx, userID)
	completed := s.completedCount(rec)

	return &model.OnboardingStatus{
		Record:                rec,
		ShouldShowModal:       !rec.HasSeenModal && !rec.IsDismissed,
		ShouldShowBanner:      rec.HasSeenModal && !rec.IsDismissed && completed < len(s.adventures),
		AllAdventuresComplete: completed == len(s.adventures),
	}
}

// completedCount counts completed adventures that are in the catalog,
// so a retired adventure id in an old record cannot inflate progress.
func (s *OnboardingService) completedCount(rec model.OnboardingRecord) int {
	n := 0
	for _, id := range s.adventures {
		if rec.HasCompleted(id) {
			n++
		}
	}
	return n
}

// MarkModalSeen records that the first-run modal was advanced past.
// Idempotent.
func (s *OnboardingService) MarkModalSeen(ctx context.Context, userID string) error {
	rec := s.load(ctx, userID)
	if rec.HasSeenModal {
		return nil
	}

	rec.HasSeenModal = true
	return s.save(ctx, userID, rec)
}

// CompleteAdventure adds the adventure to the completed set. Completing
// an already-completed adventure is a no-op, so calls are idempotent
// and commutative. Adventures are never un-completed.
func (s *OnboardingService) CompleteAdventure(ctx context.Context, userID string, id model.AdventureID) error {
	if !s.inCatalog(id) {
		return ErrUnknownAdventure
	}

	rec := s.load(ctx, userID)
	if rec.HasCompleted(id) {
		return nil
	}

	rec.CompletedAdventures = append(rec.CompletedAdventures, id)
	return s.save(ctx, userID, rec)
}

func (s *OnboardingService) inCatalog(id model.AdventureID) bool {
	for _, a := range s.adventures {
		if a == id {
			return true
		}
	}
	return false
}

// DismissOnboarding is the explicit opt-out. Both visibility flags stay
// false for this user until ResetOnboarding.
func (s *OnboardingService) DismissOnboarding(ctx context.Context, userID string) error {
	rec := s.load(ctx, userID)
	if rec.IsDismissed && rec.HasSeenModal {
		return nil
	}

	rec.IsDismissed = true
	rec.HasSeenModal = true
	return s.save(ctx, userID, rec)
}

// AwardWelcomePoints grants the one-time welcome reward. The flag
// guards the grant: once true the call is a no-op.
func (s *OnboardingService) AwardWelcomePoints(ctx context.Context, userID string) error {
	rec := s.load(ctx, userID)
	if rec.WelcomePointsAwarded {
		return nil
	}

	if err := s.users.UpdateUserPoints(ctx, userID, WelcomeReward); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	rec.WelcomePointsAwarded = true
	return s.save(ctx, userID, rec)
}

// ResetOnboarding clears the stored record. Support and testing only.
func (s *OnboardingService) ResetOnboarding(ctx context.Context, userID string) error {
	err := s.prefs.DeletePreference(ctx, userID, prefKeyOnboarding)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func (s *OnboardingService) IsAdventureComplete(ctx context.Context, userID string, id model.AdventureID) bool {
	rec := s.load(ctx, userID)
	return rec.HasCompleted(id)
}
