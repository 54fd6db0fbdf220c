// Package store persists the devserver's auth users and profile rows.
// Three implementations sit behind one interface: memory for tests,
// sqlite for the default zero-setup run, postgres for a durable
// deployment.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailExists   = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

// AuthUser is an identity record, separate from its profile row the
// way the hosted platform separates auth from the row store.
type AuthUser struct {
	ID             uuid.UUID
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	CreatedAt      time.Time
}

// Store is the persistence contract for the devserver.
type Store interface {
	CreateAuthUser(email, passwordHash string, confirmed bool) (*AuthUser, error)
	GetAuthUserByEmail(email string) (*AuthUser, error)
	GetAuthUserByID(id uuid.UUID) (*AuthUser, error)
	ConfirmEmail(id uuid.UUID) error
	UpdatePassword(id uuid.UUID, passwordHash string) error
	// DeleteAuthUser removes the identity and its profile row.
	DeleteAuthUser(id uuid.UUID) error

	InsertProfile(profile *models.User) error
	GetProfile(id uuid.UUID) (*models.User, error)
	// GetProfileByUsername matches case-insensitively.
	GetProfileByUsername(username string) (*models.User, error)
	UpdateProfile(id uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
	SetPresence(id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error

	Close() error
}

// Kind selects a store implementation.
type Kind string

const (
	Memory   Kind = "memory"
	SQLite   Kind = "sqlite"
	Postgres Kind = "postgres"
)

// Open creates a store of the given kind. dsn is a file path for
// sqlite and a connection string for postgres; memory ignores it.
func Open(kind Kind, dsn string) (Store, error) {
	switch kind {
	case Memory:
		return NewMemory(), nil
	case SQLite:
		if dsn == "" {
			dsn = "mensageiro.db"
		}
		return NewSQLite(dsn)
	case Postgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported store kind: %s", kind)
	}
}
