package service

import (
	"fmt"

	"github.com/allthriveai/allthriveai-sub012/internal/model"
)

// ChatSnapshot is the chat state the projector renders from.
type ChatSnapshot struct {
	Step        model.ChatStep
	DisplayName string
	Prompt      string
	Generated   *model.AvatarIteration
	Generating  bool
	Err         error
	Variant     bool
}

// ProjectMessages maps the current step and generated data into the
// ordered message list the chat surface renders. Pure function, no
// I/O; it is recomputed after every transition.
func ProjectMessages(s ChatSnapshot) []model.ChatMessage {
	switch s.Step {
	case model.StepIntro:
		return introMessages(s)
	case model.StepAvatarCreate:
		return avatarCreateMessages(s)
	case model.StepAvatarPreview:
		return avatarPreviewMessages(s)
	case model.StepChoosePath:
		return choosePathMessages(s)
	case model.StepComplete:
		return completeMessages(s)
	default:
		return nil
	}
}

func greetingName(s ChatSnapshot) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return "there"
}

func introMessages(s ChatSnapshot) []model.ChatMessage {
	return []model.ChatMessage{
		{
			Role: model.ChatRoleGuide,
			Text: fmt.Sprintf("Hey %s, welcome to AllThrive! I'm Ember, your guide. Want a hand setting things up?", greetingName(s)),
			Actions: []model.ChatAction{
				{ID: "intro_complete", Label: "Let's go"},
				{ID: "intro_skip", Label: "Skip for now"},
			},
		},
	}
}

func avatarCreateMessages(s ChatSnapshot) []model.ChatMessage {
	msgs := []model.ChatMessage{
		{
			Role: model.ChatRoleGuide,
			Text: "First, let's make you an avatar. Describe the look you want, or attach a reference image.",
			Actions: []model.ChatAction{
				{ID: "skip_avatar", Label: "Skip avatar"},
			},
		},
	}

	if s.Prompt != "" {
		msgs = append(msgs, model.ChatMessage{
			Role: model.ChatRoleUser,
			Text: s.Prompt,
		})
	}

	if s.Generating {
		msgs = append(msgs, model.ChatMessage{
			Role: model.ChatRoleGuide,
			Text: "Painting your avatar now, one sec...",
		})
	}

	if s.Err != nil {
		msgs = append(msgs, model.ChatMessage{
			Role: model.ChatRoleGuide,
			Text: fmt.Sprintf("That didn't work: %s. Try another prompt?", s.Err),
		})
	}

	return msgs
}

func avatarPreviewMessages(s ChatSnapshot) []model.ChatMessage {
	msgs := []model.ChatMessage{}

	if s.Prompt != "" {
		msgs = append(msgs, model.ChatMessage{
			Role: model.ChatRoleUser,
			Text: s.Prompt,
		})
	}

	preview := model.ChatMessage{
		Role: model.ChatRoleGuide,
		Text: "Here's what I came up with. Keep it?",
		Actions: []model.ChatAction{
			{ID: "accept_avatar", Label: "Love it"},
			{ID: "refine_avatar", Label: "Tweak it"},
			{ID: "skip_preview", Label: "Skip"},
		},
	}
	if s.Generated != nil {
		preview.ImageURL = s.Generated.ImageURL
	}
	msgs = append(msgs, preview)

	if s.Err != nil {
		msgs = append(msgs, model.ChatMessage{
			Role: model.ChatRoleGuide,
			Text: fmt.Sprintf("Saving failed: %s.", s.Err),
		})
	}

	return msgs
}

func choosePathMessages(s ChatSnapshot) []model.ChatMessage {
	return []model.ChatMessage{
		{
			Role: model.ChatRoleGuide,
			Text: "You're set up! Where to first?",
			Actions: []model.ChatAction{
				{ID: "battle", Label: "Try a battle"},
				{ID: "add-project", Label: "Add a project"},
				{ID: "explore", Label: "Explore creators"},
			},
		},
	}
}

func completeMessages(s ChatSnapshot) []model.ChatMessage {
	return []model.ChatMessage{
		{
			Role: model.ChatRoleGuide,
			Text: "You're all set. Find me in the corner if you need anything!",
		},
	}
}
