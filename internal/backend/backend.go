// Package backend defines the boundary contracts the client core
// consumes: the identity provider, the profiles row store, and object
// storage. The REST client in this package implements all three
// against the hosted API or the local devserver.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoSession = errors.New("no active session")
)

// APIError is a structured failure returned by the backend. Code is a
// stable machine-readable string the session layer maps onto the
// user-facing error taxonomy.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d %s: %s", e.Status, e.Code, e.Message)
}

// Backend error codes.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailUnconfirmed   = "email_not_confirmed"
	CodeEmailExists        = "email_exists"
	CodeUsernameTaken      = "username_taken"
	CodeRateLimited        = "rate_limited"
	CodePayloadTooLarge    = "payload_too_large"
)

// AuthSession is an established identity session.
type AuthSession struct {
	AccessToken string    `json:"access_token"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Event is a realtime notification from the backend.
type Event struct {
	Type   string                `json:"type"`
	UserID uuid.UUID             `json:"user_id"`
	Status models.PresenceStatus `json:"status,omitempty"`
}

// Event types delivered over the realtime feed.
const (
	EventSignedOut = "signed_out"
	EventPresence  = "presence"
)

// AuthAPI is the identity provider contract.
type AuthAPI interface {
	// GetSession returns the current session, or (nil, nil) when
	// unauthenticated.
	GetSession(ctx context.Context) (*AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, email, password string, data models.SignUpData) (*AuthSession, error)
	SignOut(ctx context.Context) error
	// DeleteUser is the compensation path for a half-finished
	// registration.
	DeleteUser(ctx context.Context, id uuid.UUID) error
	// ResetPasswordForEmail starts a password recovery; the recovery
	// token reaches the user out of band.
	ResetPasswordForEmail(ctx context.Context, email string) error
	// UpdatePassword sets a new password, authorized by a recovery
	// token rather than the cached session.
	UpdatePassword(ctx context.Context, recoveryToken, newPassword string) error
	// Subscribe delivers session/presence events until the returned
	// cancel function is called.
	Subscribe(ctx context.Context, fn func(Event)) (func(), error)
}

// ProfileStore is the profiles row-store contract.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetProfileByUsername matches case-insensitively.
	GetProfileByUsername(ctx context.Context, username string) (*models.User, error)
	InsertProfile(ctx context.Context, profile *models.User) error
	UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
	SetPresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error
}

// UploadOptions mirror the storage collaborator's upload knobs.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

// ObjectStore is the object-storage contract. Only the avatar and
// attachment paths touch it.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error
	Remove(ctx context.Context, bucket string, keys []string) error
	PublicURL(bucket, key string) string
}
