package model

import (
	"time"

	"github.com/google/uuid"
)

// AvatarIteration is one generated candidate image returned by the
// avatar generation service.
type AvatarIteration struct {
	ID        uuid.UUID
	ImageURL  string
	Prompt    string
	CreatedAt time.Time
}
