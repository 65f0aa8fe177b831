package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Character is a person record owned by a user. The user's own profile is
// the single character flagged is_owner.
type Character struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	UserID           uuid.UUID      `db:"user_id" json:"user_id"`
	Name             string         `db:"name" json:"name"`
	Role             string         `db:"role" json:"role"`
	Description      string         `db:"description" json:"description"`
	Traits           pq.StringArray `db:"traits" json:"traits"`
	Motivations      pq.StringArray `db:"motivations" json:"motivations"`
	AvatarURL        *string        `db:"avatar_url" json:"avatar_url,omitempty"`
	IsOwner          bool           `db:"is_owner" json:"is_owner"`
	LastInteractedAt *time.Time     `db:"last_interacted_at" json:"last_interacted_at,omitempty"`
	DeletedAt        *time.Time     `db:"deleted_at" json:"-"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Participant is the character summary embedded in event responses.
type Participant struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Role             string     `db:"role" json:"role"`
	AvatarURL        *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	IsOwner          bool       `db:"is_owner" json:"is_owner"`
	LastInteractedAt *time.Time `db:"last_interacted_at" json:"last_interacted_at,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
