package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/avatar"
	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// fakeSession records session-control calls and lets tests emit
// synthetic events through the callbacks captured at start.
type fakeSession struct {
	mu          sync.Mutex
	generated   []string
	refImages   []string
	acceptedIDs []uuid.UUID
	abandons    int
	disconnects int
	acceptErr   error
	generateCh  chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{generateCh: make(chan struct{}, 8)}
}

func (f *fakeSession) Generate(prompt, referenceImageURL string) error {
	f.mu.Lock()
	f.generated = append(f.generated, prompt)
	f.refImages = append(f.refImages, referenceImageURL)
	f.mu.Unlock()
	f.generateCh <- struct{}{}
	return nil
}

func (f *fakeSession) Accept(_ context.Context, iterationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptedIDs = append(f.acceptedIDs, iterationID)
	return f.acceptErr
}

func (f *fakeSession) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandons++
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeSession) abandonCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abandons
}

func (f *fakeSession) lastRefImage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.refImages) == 0 {
		return ""
	}
	return f.refImages[len(f.refImages)-1]
}

type fakeStarter struct {
	mu       sync.Mutex
	session  *fakeSession
	cb       avatar.Callbacks
	lastOpts avatar.SessionOptions
	starts   int
	startErr error
}

func (f *fakeStarter) StartSession(_ context.Context, _ string, opts avatar.SessionOptions, cb avatar.Callbacks) (AvatarSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts++
	f.lastOpts = opts
	f.cb = cb
	return f.session, nil
}

func (f *fakeStarter) callbacks() avatar.Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func newChatFixture(t *testing.T, variant bool) (*ChatOrchestrator, *OnboardingService, *fakeStarter) {
	t.Helper()

	onboarding := NewOnboardingService(newMemPrefStore(), &mocks.MockUserRepository{}, nil)
	starter := &fakeStarter{session: newFakeSession()}
	orch := NewChatOrchestrator("u1", "Riley", onboarding, nil, starter, ChatConfig{VariantChoosePath: variant})

	return orch, onboarding, starter
}

func waitGenerate(t *testing.T, s *fakeSession) {
	t.Helper()
	select {
	case <-s.generateCh:
	case <-time.After(time.Second):
		t.Fatal("generate was never called")
	}
}

func testIteration() model.AvatarIteration {
	return model.AvatarIteration{
		ID:        uuid.New(),
		ImageURL:  "https://cdn.allthrive.ai/avatars/u1/candidate.png",
		Prompt:    "a fire spirit",
		CreatedAt: time.Now().UTC(),
	}
}

func TestChatOrchestrator_IntroComplete(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, _ := newChatFixture(t, false)

	assert.Equal(t, model.StepIntro, orch.Step())
	assert.NoError(t, orch.HandleIntroComplete(ctx))

	assert.Equal(t, model.StepAvatarCreate, orch.Step())
	assert.True(t, onboarding.Status(ctx, "u1").Record.HasSeenModal)
}

func TestChatOrchestrator_IntroSkip(t *testing.T) {
	tests := []struct {
		name     string
		variant  bool
		expected model.ChatStep
	}{
		{name: "standard flow", variant: false, expected: model.StepComplete},
		{name: "variant flow", variant: true, expected: model.StepChoosePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			orch, onboarding, _ := newChatFixture(t, tt.variant)

			assert.NoError(t, orch.HandleIntroSkip(ctx))

			assert.Equal(t, tt.expected, orch.Step())
			assert.True(t, onboarding.Status(ctx, "u1").Record.HasSeenModal)
		})
	}
}

func TestChatOrchestrator_GenerateAdvancesOnEvent(t *testing.T) {
	ctx := context.Background()
	orch, _, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "tpl-ember", ""))
	waitGenerate(t, starter.session)

	// Still creating until the session reports the iteration.
	assert.Equal(t, model.StepAvatarCreate, orch.Step())
	assert.True(t, orch.Snapshot().Generating)

	it := testIteration()
	starter.callbacks().OnGenerated(it)

	assert.Equal(t, model.StepAvatarPreview, orch.Step())
	snap := orch.Snapshot()
	assert.False(t, snap.Generating)
	assert.Equal(t, it.ImageURL, snap.Generated.ImageURL)
}

func TestChatOrchestrator_ReferenceImageSideChannel(t *testing.T) {
	ctx := context.Background()
	orch, _, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "like this photo", "", "https://cdn.allthrive.ai/refs/u1.png"))
	waitGenerate(t, starter.session)

	// The generate call must observe the mirrored value, not a stale
	// capture.
	assert.Equal(t, "https://cdn.allthrive.ai/refs/u1.png", starter.session.lastRefImage())
	assert.Equal(t, avatar.ModeReference, starter.lastOpts.Mode)
}

func TestChatOrchestrator_GenerationErrorPassesThrough(t *testing.T) {
	ctx := context.Background()
	orch, _, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)

	starter.callbacks().OnError(assert.AnError)

	snap := orch.Snapshot()
	assert.Equal(t, model.StepAvatarCreate, snap.Step)
	assert.False(t, snap.Generating)
	assert.ErrorIs(t, snap.Err, assert.AnError)
}

func TestChatOrchestrator_SkipAvatar(t *testing.T) {
	tests := []struct {
		name     string
		variant  bool
		expected model.ChatStep
	}{
		{name: "standard flow", variant: false, expected: model.StepComplete},
		{name: "variant flow", variant: true, expected: model.StepChoosePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			orch, _, starter := newChatFixture(t, tt.variant)

			assert.NoError(t, orch.HandleIntroComplete(ctx))
			assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
			waitGenerate(t, starter.session)

			assert.NoError(t, orch.HandleSkipAvatar(ctx))

			assert.Equal(t, tt.expected, orch.Step())
			assert.Equal(t, 1, starter.session.abandonCount())

			// Skipping again must not abandon twice.
			assert.NoError(t, orch.HandleSkipAvatar(ctx))
			assert.Equal(t, 1, starter.session.abandonCount())
		})
	}
}

func TestChatOrchestrator_AcceptAvatar(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)

	it := testIteration()
	starter.callbacks().OnGenerated(it)

	assert.NoError(t, orch.HandleAcceptAvatar(ctx))

	assert.Equal(t, model.StepComplete, orch.Step())
	assert.Equal(t, []uuid.UUID{it.ID}, starter.session.acceptedIDs)
	assert.True(t, onboarding.IsAdventureComplete(ctx, "u1", model.AdventurePersonalize))
}

func TestChatOrchestrator_AcceptStoresAvatar(t *testing.T) {
	ctx := context.Background()

	onboarding := NewOnboardingService(newMemPrefStore(), &mocks.MockUserRepository{}, nil)
	starter := &fakeStarter{session: newFakeSession()}

	usersRepo := &mocks.MockUserRepository{}
	usersRepo.On("UpdateUserAvatar", mock.Anything, "u1", mock.Anything).Return(nil)

	orch := NewChatOrchestrator("u1", "Riley", onboarding, usersRepo, starter, ChatConfig{})

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)

	it := testIteration()
	starter.callbacks().OnGenerated(it)

	assert.NoError(t, orch.HandleAcceptAvatar(ctx))

	usersRepo.AssertCalled(t, "UpdateUserAvatar", mock.Anything, "u1", it.ImageURL)
}

func TestChatOrchestrator_AcceptFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, starter := newChatFixture(t, false)
	starter.session.acceptErr = assert.AnError

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)
	starter.callbacks().OnGenerated(testIteration())

	err := orch.HandleAcceptAvatar(ctx)
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, model.StepAvatarPreview, orch.Step())
	assert.False(t, onboarding.IsAdventureComplete(ctx, "u1", model.AdventurePersonalize))
}

func TestChatOrchestrator_RefineReturnsToCreate(t *testing.T) {
	ctx := context.Background()
	orch, _, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)
	starter.callbacks().OnGenerated(testIteration())

	assert.NoError(t, orch.HandleRefineAvatar(ctx))

	snap := orch.Snapshot()
	assert.Equal(t, model.StepAvatarCreate, snap.Step)
	assert.Nil(t, snap.Generated)
}

func TestChatOrchestrator_ChoosePath(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, _ := newChatFixture(t, true)

	var navigated string
	orch.OnNavigate(func(path string) { navigated = path })

	assert.NoError(t, orch.HandleIntroSkip(ctx))
	assert.Equal(t, model.StepChoosePath, orch.Step())

	assert.NoError(t, orch.HandleChoosePath(ctx, "battle"))

	assert.Equal(t, model.StepComplete, orch.Step())
	assert.Equal(t, "/battles", navigated)
	assert.True(t, onboarding.IsAdventureComplete(ctx, "u1", model.AdventureBattle))
}

func TestChatOrchestrator_ChooseUnknownPath(t *testing.T) {
	ctx := context.Background()
	orch, _, _ := newChatFixture(t, true)

	assert.NoError(t, orch.HandleIntroSkip(ctx))
	assert.ErrorIs(t, orch.HandleChoosePath(ctx, "moon-base"), ErrUnknownPath)
	assert.Equal(t, model.StepChoosePath, orch.Step())
}

func TestChatOrchestrator_DismissFromAnyStep(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)

	assert.NoError(t, orch.HandleDismiss(ctx))

	assert.Equal(t, model.StepComplete, orch.Step())
	assert.Equal(t, 1, starter.session.disconnects)

	status := onboarding.Status(ctx, "u1")
	assert.True(t, status.Record.IsDismissed)
	assert.False(t, status.ShouldShowModal)
	assert.False(t, status.ShouldShowBanner)
}

func TestChatOrchestrator_StickyActive(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, _ := newChatFixture(t, false)

	// New user: modal should show, flow is active at intro.
	assert.True(t, orch.Active(ctx))

	// Advancing marks the modal seen, which alone would hide the flow;
	// the local step keeps it visible.
	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.False(t, onboarding.Status(ctx, "u1").ShouldShowModal)
	assert.True(t, orch.Active(ctx))

	assert.NoError(t, orch.HandleSkipAvatar(ctx))
	assert.False(t, orch.Active(ctx))
}

func TestChatOrchestrator_InactiveForReturningUser(t *testing.T) {
	ctx := context.Background()
	orch, onboarding, _ := newChatFixture(t, false)

	assert.NoError(t, onboarding.MarkModalSeen(ctx, "u1"))

	// Modal already seen and the local flow never started.
	assert.False(t, orch.Active(ctx))
}

func TestChatOrchestrator_SessionStartFailure(t *testing.T) {
	ctx := context.Background()

	onboarding := NewOnboardingService(newMemPrefStore(), &mocks.MockUserRepository{}, nil)
	starter := &fakeStarter{session: newFakeSession(), startErr: assert.AnError}
	orch := NewChatOrchestrator("u1", "Riley", onboarding, nil, starter, ChatConfig{})

	assert.NoError(t, orch.HandleIntroComplete(ctx))

	err := orch.HandleSubmitPrompt(ctx, "a fire spirit", "", "")
	assert.ErrorIs(t, err, ErrSessionUnavailable)

	snap := orch.Snapshot()
	assert.False(t, snap.Generating)
	assert.ErrorIs(t, snap.Err, ErrSessionUnavailable)
}

func TestChatOrchestrator_SessionReusedAcrossGenerations(t *testing.T) {
	ctx := context.Background()
	orch, _, starter := newChatFixture(t, false)

	assert.NoError(t, orch.HandleIntroComplete(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a fire spirit", "", ""))
	waitGenerate(t, starter.session)
	starter.callbacks().OnGenerated(testIteration())

	assert.NoError(t, orch.HandleRefineAvatar(ctx))
	assert.NoError(t, orch.HandleSubmitPrompt(ctx, "a water spirit", "", ""))
	waitGenerate(t, starter.session)

	assert.Equal(t, 1, starter.starts)
	assert.Equal(t, []string{"a fire spirit", "a water spirit"}, starter.session.generated)
}
