package domain

import (
	"strings"
	"time"

	"github.com/auxroom/auxroom/internal/infrastructure/validate"
	"github.com/google/uuid"
)

// User is a room participant. The ID is assigned by the server on join
// and stays stable across reconnects; the username is display-only.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
}

func NewUser(rawName string) (*User, error) {
	validateUsername := validate.Compose(
		validate.Required(),
		validate.MinLength(2),
		validate.MaxLength(32),
		validate.NoSpaces(),
		// Allow letters, numbers, underscore, hyphen
		validate.Matches(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`,
			"username can only contain letters, numbers, underscores, and hyphens (cannot start/end with _ or -)"),
	)

	if err := validateUsername(rawName); err != nil {
		return nil, err
	}

	return &User{
		ID:        uuid.NewString(),
		Username:  strings.TrimSpace(rawName),
		Connected: true,
		JoinedAt:  time.Now(),
	}, nil
}
