package model

import "time"

type User struct {
	ID               string
	Username         string
	DisplayName      string
	Points           int
	AvatarURL        string
	IsAdmin          bool
	RegistrationDate time.Time
	LastAuthDate     time.Time
}
