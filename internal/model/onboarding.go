package model

// AdventureID identifies one discrete first-run task.
type AdventureID string

const (
	AdventureBattle      AdventureID = "battle"
	AdventureAddProject  AdventureID = "add-project"
	AdventureExplore     AdventureID = "explore"
	AdventurePersonalize AdventureID = "personalize"
)

// DefaultAdventures is the catalog the derived visibility flags count
// against. The list is configuration data; this is the product default.
var DefaultAdventures = []AdventureID{
	AdventureBattle,
	AdventureAddProject,
	AdventureExplore,
	AdventurePersonalize,
}

// OnboardingRecord is the per-user onboarding blob persisted in the
// preference store. Missing fields take their zero value on load and
// unknown fields are ignored, so the schema can grow without migrations.
type OnboardingRecord struct {
	HasSeenModal         bool          `json:"hasSeenModal"`
	CompletedAdventures  []AdventureID `json:"completedAdventures"`
	IsDismissed          bool          `json:"isDismissed"`
	WelcomePointsAwarded bool          `json:"welcomePointsAwarded"`
}

// HasCompleted reports whether the adventure is in the completed set.
func (r *OnboardingRecord) HasCompleted(id AdventureID) bool {
	for _, a := range r.CompletedAdventures {
		if a == id {
			return true
		}
	}
	return false
}

// OnboardingStatus is a record plus its derived visibility flags. The
// flags are recomputed on every read and never persisted.
type OnboardingStatus struct {
	Record                OnboardingRecord
	ShouldShowModal       bool
	ShouldShowBanner      bool
	AllAdventuresComplete bool
}
