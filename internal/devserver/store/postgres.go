package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lfarias/mensageiro/internal/models"
)

// PostgresStore backs the devserver with PostgreSQL for deployments
// that outlive a single machine.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id              UUID PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	password_hash   TEXT NOT NULL,
	email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	id            UUID PRIMARY KEY REFERENCES auth_users(id) ON DELETE CASCADE,
	username      TEXT NOT NULL,
	full_name     TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	online_status TEXT NOT NULL DEFAULT 'offline',
	last_seen     TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active',
	bio           TEXT NOT NULL DEFAULT '',
	is_verified   BOOLEAN NOT NULL DEFAULT FALSE,
	is_blocked    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username ON profiles (LOWER(username));
`

// NewPostgres connects to PostgreSQL and ensures the schema exists.
func NewPostgres(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateAuthUser(email, passwordHash string, confirmed bool) (*AuthUser, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM auth_users WHERE LOWER(email) = LOWER($1)", email).Scan(&count)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	u := &AuthUser{
		ID:             uuid.New(),
		Email:          email,
		PasswordHash:   passwordHash,
		EmailConfirmed: confirmed,
		CreatedAt:      time.Now(),
	}
	_, err = s.db.Exec(
		"INSERT INTO auth_users (id, email, password_hash, email_confirmed, created_at) VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.Email, u.PasswordHash, u.EmailConfirmed, u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanPgAuthUser(row *sql.Row) (*AuthUser, error) {
	var u AuthUser
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailConfirmed, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetAuthUserByEmail(email string) (*AuthUser, error) {
	return scanPgAuthUser(s.db.QueryRow(
		"SELECT id, email, password_hash, email_confirmed, created_at FROM auth_users WHERE LOWER(email) = LOWER($1)",
		email,
	))
}

func (s *PostgresStore) GetAuthUserByID(id uuid.UUID) (*AuthUser, error) {
	return scanPgAuthUser(s.db.QueryRow(
		"SELECT id, email, password_hash, email_confirmed, created_at FROM auth_users WHERE id = $1",
		id,
	))
}

func (s *PostgresStore) ConfirmEmail(id uuid.UUID) error {
	result, err := s.db.Exec("UPDATE auth_users SET email_confirmed = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *PostgresStore) UpdatePassword(id uuid.UUID, passwordHash string) error {
	result, err := s.db.Exec("UPDATE auth_users SET password_hash = $1 WHERE id = $2",
		passwordHash, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteAuthUser(id uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM auth_users WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *PostgresStore) InsertProfile(profile *models.User) error {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM profiles WHERE LOWER(username) = LOWER($1)",
		profile.Username).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrUsernameTaken
	}

	_, err = s.db.Exec(`
		INSERT INTO profiles (id, username, full_name, email, avatar_url, online_status,
		                      last_seen, status, bio, is_verified, is_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		profile.ID, profile.Username, profile.FullName, profile.Email,
		profile.AvatarURL, string(profile.OnlineStatus), profile.LastSeen,
		string(profile.Status), profile.Bio, profile.IsVerified, profile.IsBlocked,
		profile.CreatedAt, profile.UpdatedAt,
	)
	return err
}

const pgProfileColumns = `id, username, full_name, email, avatar_url, online_status,
	last_seen, status, bio, is_verified, is_blocked, created_at, updated_at`

func scanPgProfile(row *sql.Row) (*models.User, error) {
	var p models.User
	var online, status string
	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Email, &p.AvatarURL, &online,
		&p.LastSeen, &status, &p.Bio, &p.IsVerified, &p.IsBlocked, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.OnlineStatus = models.PresenceStatus(online)
	p.Status = models.AccountStatus(status)
	return &p, nil
}

func (s *PostgresStore) GetProfile(id uuid.UUID) (*models.User, error) {
	return scanPgProfile(s.db.QueryRow(
		"SELECT "+pgProfileColumns+" FROM profiles WHERE id = $1", id,
	))
}

func (s *PostgresStore) GetProfileByUsername(username string) (*models.User, error) {
	return scanPgProfile(s.db.QueryRow(
		"SELECT "+pgProfileColumns+" FROM profiles WHERE LOWER(username) = LOWER($1)", username,
	))
}

func (s *PostgresStore) UpdateProfile(id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	_, err := s.db.Exec(`
		UPDATE profiles SET
			full_name  = COALESCE($1, full_name),
			bio        = COALESCE($2, bio),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = $4
		WHERE id = $5`,
		upd.FullName, upd.Bio, upd.AvatarURL, time.Now(), id,
	)
	if err != nil {
		return nil, err
	}
	return s.GetProfile(id)
}

func (s *PostgresStore) SetPresence(id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	result, err := s.db.Exec(
		"UPDATE profiles SET online_status = $1, last_seen = $2, updated_at = $3 WHERE id = $4",
		string(status), lastSeen, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *PostgresStore) Close() error { return s.db.Close() }
