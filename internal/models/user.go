package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is the online/offline/away state of an identity.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
	PresenceAway    PresenceStatus = "away"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
	AccountBlocked  AccountStatus = "blocked"
)

// User is a profile row in the backend's row store. It is created at
// registration and mutated only by the owning user or by presence
// transitions; this client never deletes one.
type User struct {
	ID           uuid.UUID      `json:"id"`
	Username     string         `json:"username"`
	FullName     string         `json:"full_name"`
	Email        string         `json:"email"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	OnlineStatus PresenceStatus `json:"online_status"`
	LastSeen     time.Time      `json:"last_seen"`
	Status       AccountStatus  `json:"status"`
	Bio          string         `json:"bio,omitempty"`
	IsVerified   bool           `json:"is_verified"`
	IsBlocked    bool           `json:"is_blocked"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ProfileUpdate is a partial profile mutation. Nil fields are left
// untouched by the row store.
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// SignUpData carries the profile fields collected at registration.
type SignUpData struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	FullName string `json:"full_name" validate:"required"`
}
