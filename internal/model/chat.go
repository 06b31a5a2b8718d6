package model

// ChatStep is the current position in the guided onboarding conversation.
type ChatStep string

const (
	StepIntro         ChatStep = "intro"
	StepAvatarCreate  ChatStep = "avatar-create"
	StepAvatarPreview ChatStep = "avatar-preview"
	StepChoosePath    ChatStep = "choose-path"
	StepComplete      ChatStep = "complete"
)

type ChatRole string

const (
	ChatRoleGuide ChatRole = "guide"
	ChatRoleUser  ChatRole = "user"
)

// ChatMessage is one display message projected from the current chat
// state. The rendering surface consumes these in order.
type ChatMessage struct {
	Role     ChatRole     `json:"role"`
	Text     string       `json:"text,omitempty"`
	ImageURL string       `json:"image_url,omitempty"`
	Actions  []ChatAction `json:"actions,omitempty"`
}

// ChatAction is a tappable choice attached to a message.
type ChatAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
