package service

import (
	"context"
	"sync"

	"github.com/allthriveai/allthriveai-sub012/internal/avatar"
	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"
)

// ChatConfig selects the product flow variant.
type ChatConfig struct {
	// VariantChoosePath inserts the choose-path step between
	// avatar-preview and complete.
	VariantChoosePath bool `yaml:"variantChoosePath"`
}

// pathDestination maps a chosen path to the adventure it completes and
// the client-side destination to navigate to.
type pathDestination struct {
	Adventure model.AdventureID
	Path      string
}

var pathDestinations = map[string]pathDestination{
	"battle":      {Adventure: model.AdventureBattle, Path: "/battles"},
	"add-project": {Adventure: model.AdventureAddProject, Path: "/projects/new"},
	"explore":     {Adventure: model.AdventureExplore, Path: "/explore"},
}

// ChatOrchestrator sequences one user's guided onboarding conversation
// and bridges it to the avatar generation session. It owns the
// session-scoped chat state; persisted progress lives in the
// onboarding service.
type ChatOrchestrator struct {
	userID      string
	displayName string
	onboarding  OnboardingServiceI
	users       UserRepository
	starter     AvatarSessionStarter
	variant     bool

	// onChange fires after every state change so the transport can
	// re-project and push. onNavigate fires once, on path selection.
	onChange   func()
	onNavigate func(path string)

	mu         sync.Mutex
	step       model.ChatStep
	templateID string
	prompt     string
	generated  *model.AvatarIteration
	generating bool
	genErr     error
	session    AvatarSession

	// refImageURL mirrors the latest reference image synchronously so
	// the asynchronous generate call always reads the current value,
	// not the one captured when the call was scheduled.
	refImageURL string
}

func NewChatOrchestrator(
	userID string,
	displayName string,
	onboarding OnboardingServiceI,
	users UserRepository,
	starter AvatarSessionStarter,
	cfg ChatConfig,
) *ChatOrchestrator {
	return &ChatOrchestrator{
		userID:      userID,
		displayName: displayName,
		onboarding:  onboarding,
		users:       users,
		starter:     starter,
		variant:     cfg.VariantChoosePath,
		step:        model.StepIntro,
	}
}

// OnChange registers the state-change notifier. Must be set before the
// first event is handled.
func (o *ChatOrchestrator) OnChange(fn func()) {
	o.onChange = fn
}

// OnNavigate registers the navigation sink for the choose-path step.
func (o *ChatOrchestrator) OnNavigate(fn func(path string)) {
	o.onNavigate = fn
}

func (o *ChatOrchestrator) notify() {
	if o.onChange != nil {
		o.onChange()
	}
}

// Step returns the current step.
func (o *ChatOrchestrator) Step() model.ChatStep {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Active reports whether the guided flow should render. The predicate
// is sticky: once the local step has advanced past intro the flow
// stays visible even though MarkModalSeen has flipped the persisted
// flag, so marking-as-seen mid-flow does not abort the session.
func (o *ChatOrchestrator) Active(ctx context.Context) bool {
	o.mu.Lock()
	step := o.step
	o.mu.Unlock()

	if step == model.StepComplete {
		return false
	}
	if step != model.StepIntro {
		return true
	}
	return o.onboarding.Status(ctx, o.userID).ShouldShowModal
}

// nextAfterAvatar is where the flow goes when the avatar portion ends.
func (o *ChatOrchestrator) nextAfterAvatar() model.ChatStep {
	if o.variant {
		return model.StepChoosePath
	}
	return model.StepComplete
}

// HandleIntroComplete advances past the intro into avatar creation.
func (o *ChatOrchestrator) HandleIntroComplete(ctx context.Context) error {
	o.mu.Lock()
	if o.step != model.StepIntro {
		o.mu.Unlock()
		return nil
	}
	o.step = model.StepAvatarCreate
	o.mu.Unlock()

	if err := o.onboarding.MarkModalSeen(ctx, o.userID); err != nil {
		logger.Logger().Warn("failed to mark modal seen", zap.String("user_id", o.userID), zap.Error(err))
	}

	o.notify()
	return nil
}

// HandleIntroSkip skips the whole avatar portion.
func (o *ChatOrchestrator) HandleIntroSkip(ctx context.Context) error {
	o.mu.Lock()
	if o.step != model.StepIntro {
		o.mu.Unlock()
		return nil
	}
	o.step = o.nextAfterAvatar()
	o.mu.Unlock()

	if err := o.onboarding.MarkModalSeen(ctx, o.userID); err != nil {
		logger.Logger().Warn("failed to mark modal seen", zap.String("user_id", o.userID), zap.Error(err))
	}

	o.notify()
	return nil
}

// HandleSubmitPrompt delegates generation to the avatar session. The
// transition to avatar-preview happens when the session's generated
// event arrives, not here.
func (o *ChatOrchestrator) HandleSubmitPrompt(ctx context.Context, prompt, templateID, referenceImageURL string) error {
	o.mu.Lock()
	if o.step != model.StepAvatarCreate {
		o.mu.Unlock()
		return nil
	}

	o.prompt = prompt
	o.templateID = templateID
	// Synchronous mirror; the generate goroutine reads it back at
	// execution time.
	o.refImageURL = referenceImageURL
	o.generating = true
	o.genErr = nil
	o.mu.Unlock()

	sess, err := o.ensureSession(ctx)
	if err != nil {
		o.mu.Lock()
		o.generating = false
		o.genErr = err
		o.mu.Unlock()
		o.notify()
		return err
	}

	go func() {
		if err := sess.Generate(prompt, o.referenceImage()); err != nil {
			o.mu.Lock()
			o.generating = false
			o.genErr = err
			o.mu.Unlock()
			o.notify()
		}
	}()

	o.notify()
	return nil
}

func (o *ChatOrchestrator) referenceImage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refImageURL
}

func (o *ChatOrchestrator) ensureSession(ctx context.Context) (AvatarSession, error) {
	o.mu.Lock()
	if o.session != nil {
		sess := o.session
		o.mu.Unlock()
		return sess, nil
	}

	mode := avatar.ModeTemplate
	if o.refImageURL != "" {
		mode = avatar.ModeReference
	}
	opts := avatar.SessionOptions{
		Mode:              mode,
		TemplateID:        o.templateID,
		ReferenceImageURL: o.refImageURL,
	}
	o.mu.Unlock()

	sess, err := o.starter.StartSession(ctx, o.userID, opts, avatar.Callbacks{
		OnGenerated: o.handleGenerated,
		OnSaved:     o.handleSaved,
		OnError:     o.handleGenerationError,
	})
	if err != nil {
		return nil, ErrSessionUnavailable
	}

	o.mu.Lock()
	o.session = sess
	o.mu.Unlock()
	return sess, nil
}

func (o *ChatOrchestrator) handleGenerated(it model.AvatarIteration) {
	o.mu.Lock()
	o.generated = &it
	o.generating = false
	if o.step == model.StepAvatarCreate {
		o.step = model.StepAvatarPreview
	}
	o.mu.Unlock()

	o.notify()
}

func (o *ChatOrchestrator) handleSaved() {
	o.notify()
}

// handleGenerationError passes the error through for display. No
// retries here; those belong to the generation service.
func (o *ChatOrchestrator) handleGenerationError(err error) {
	o.mu.Lock()
	o.genErr = err
	o.generating = false
	o.mu.Unlock()

	o.notify()
}

// HandleSkipAvatar aborts generation and moves on.
func (o *ChatOrchestrator) HandleSkipAvatar(ctx context.Context) error {
	o.mu.Lock()
	if o.step != model.StepAvatarCreate {
		o.mu.Unlock()
		return nil
	}
	sess := o.session
	o.session = nil
	o.step = o.nextAfterAvatar()
	o.generating = false
	o.mu.Unlock()

	if sess != nil {
		sess.Abandon()
		sess.Disconnect()
	}

	o.notify()
	return nil
}

// HandleAcceptAvatar waits for the session to persist the iteration,
// then completes the personalize adventure and advances.
func (o *ChatOrchestrator) HandleAcceptAvatar(ctx context.Context) error {
	o.mu.Lock()
	if o.step != model.StepAvatarPreview {
		o.mu.Unlock()
		return nil
	}
	gen := o.generated
	sess := o.session
	o.mu.Unlock()

	if gen == nil {
		return ErrNoIteration
	}
	if sess == nil {
		return ErrSessionUnavailable
	}

	if err := sess.Accept(ctx, gen.ID); err != nil {
		o.mu.Lock()
		o.genErr = err
		o.mu.Unlock()
		o.notify()
		return err
	}

	if o.users != nil {
		if err := o.users.UpdateUserAvatar(ctx, o.userID, gen.ImageURL); err != nil {
			logger.Logger().Warn("failed to store accepted avatar",
				zap.String("user_id", o.userID),
				zap.Error(err))
		}
	}

	if err := o.onboarding.CompleteAdventure(ctx, o.userID, model.AdventurePersonalize); err != nil {
		logger.Logger().Warn("failed to complete personalize adventure",
			zap.String("user_id", o.userID),
			zap.Error(err))
	}

	o.mu.Lock()
	o.step = o.nextAfterAvatar()
	o.mu.Unlock()

	o.notify()
	return nil
}

// HandleRefineAvatar returns to prompt entry, dropping the candidate.
func (o *ChatOrchestrator) HandleRefineAvatar(ctx context.Context) error {
	o.mu.Lock()
	if o.step != model.StepAvatarPreview {
		o.mu.Unlock()
		return nil
	}
	o.step = model.StepAvatarCreate
	o.generated = nil
	o.genErr = nil
	o.mu.Unlock()

	o.notify()
	return nil
}

// HandleSkipPreview aborts without accepting.
func (o *ChatOrchestrator) HandleSkipPreview(ctx context.Context) error {
	o.mu.Lock()
	if o.step != model.StepAvatarPreview {
		o.mu.Unlock()
		return nil
	}
	sess := o.session
	o.session = nil
	o.step = o.nextAfterAvatar()
	o.mu.Unlock()

	if sess != nil {
		sess.Abandon()
		sess.Disconnect()
	}

	o.notify()
	return nil
}

// HandleChoosePath completes the chosen adventure and navigates to its
// destination. Variant flow only.
func (o *ChatOrchestrator) HandleChoosePath(ctx context.Context, pathID string) error {
	o.mu.Lock()
	if o.step != model.StepChoosePath {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	dest, ok := pathDestinations[pathID]
	if !ok {
		return ErrUnknownPath
	}

	if err := o.onboarding.CompleteAdventure(ctx, o.userID, dest.Adventure); err != nil {
		return err
	}

	o.mu.Lock()
	o.step = model.StepComplete
	o.mu.Unlock()

	if o.onNavigate != nil {
		o.onNavigate(dest.Path)
	}

	o.notify()
	return nil
}

// HandleDismiss opts the user out of the guided flow. Reachable from
// any step.
func (o *ChatOrchestrator) HandleDismiss(ctx context.Context) error {
	o.mu.Lock()
	sess := o.session
	o.session = nil
	o.step = model.StepComplete
	o.mu.Unlock()

	if sess != nil {
		sess.Disconnect()
	}

	if err := o.onboarding.DismissOnboarding(ctx, o.userID); err != nil {
		logger.Logger().Warn("failed to dismiss onboarding",
			zap.String("user_id", o.userID),
			zap.Error(err))
	}

	o.notify()
	return nil
}

// Close releases the avatar session without dismissing onboarding.
// Used when the client disconnects mid-flow.
func (o *ChatOrchestrator) Close() {
	o.mu.Lock()
	sess := o.session
	o.session = nil
	o.mu.Unlock()

	if sess != nil {
		sess.Disconnect()
	}
}

// Snapshot captures the chat state for projection.
func (o *ChatOrchestrator) Snapshot() ChatSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return ChatSnapshot{
		Step:        o.step,
		DisplayName: o.displayName,
		Prompt:      o.prompt,
		Generated:   o.generated,
		Generating:  o.generating,
		Err:         o.genErr,
		Variant:     o.variant,
	}
}
