package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/lfarias/mensageiro/internal/models"
)

// SQLiteStore is the default on-disk store.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL COLLATE NOCASE UNIQUE,
	password_hash   TEXT NOT NULL,
	email_confirmed INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY REFERENCES auth_users(id) ON DELETE CASCADE,
	username      TEXT NOT NULL,
	full_name     TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	online_status TEXT NOT NULL DEFAULT 'offline',
	last_seen     TIMESTAMP NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active',
	bio           TEXT NOT NULL DEFAULT '',
	is_verified   INTEGER NOT NULL DEFAULT 0,
	is_blocked    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username ON profiles (LOWER(username));
`

// NewSQLite opens (and migrates) a sqlite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateAuthUser(email, passwordHash string, confirmed bool) (*AuthUser, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM auth_users WHERE email = ?", email).Scan(&count)
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
		"INSERT INTO auth_users (id, email, password_hash, email_confirmed, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID.String(), u.Email, u.PasswordHash, u.EmailConfirmed, u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) scanAuthUser(row *sql.Row) (*AuthUser, error) {
	var u AuthUser
	var id string
	err := row.Scan(&id, &u.Email, &u.PasswordHash, &u.EmailConfirmed, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetAuthUserByEmail(email string) (*AuthUser, error) {
	return s.scanAuthUser(s.db.QueryRow(
		"SELECT id, email, password_hash, email_confirmed, created_at FROM auth_users WHERE email = ?",
		email,
	))
}

func (s *SQLiteStore) GetAuthUserByID(id uuid.UUID) (*AuthUser, error) {
	return s.scanAuthUser(s.db.QueryRow(
		"SELECT id, email, password_hash, email_confirmed, created_at FROM auth_users WHERE id = ?",
		id.String(),
	))
}

func (s *SQLiteStore) ConfirmEmail(id uuid.UUID) error {
	result, err := s.db.Exec("UPDATE auth_users SET email_confirmed = 1 WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *SQLiteStore) UpdatePassword(id uuid.UUID, passwordHash string) error {
	result, err := s.db.Exec("UPDATE auth_users SET password_hash = ? WHERE id = ?",
		passwordHash, id.String())
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *SQLiteStore) DeleteAuthUser(id uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM auth_users WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *SQLiteStore) InsertProfile(profile *models.User) error {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM profiles WHERE LOWER(username) = LOWER(?)",
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID.String(), profile.Username, profile.FullName, profile.Email,
		profile.AvatarURL, string(profile.OnlineStatus), profile.LastSeen,
		string(profile.Status), profile.Bio, profile.IsVerified, profile.IsBlocked,
		profile.CreatedAt, profile.UpdatedAt,
	)
	return err
}

const sqliteProfileColumns = `id, username, full_name, email, avatar_url, online_status,
	last_seen, status, bio, is_verified, is_blocked, created_at, updated_at`

func (s *SQLiteStore) scanProfile(row *sql.Row) (*models.User, error) {
	var p models.User
	var id, online, status string
	err := row.Scan(&id, &p.Username, &p.FullName, &p.Email, &p.AvatarURL, &online,
		&p.LastSeen, &status, &p.Bio, &p.IsVerified, &p.IsBlocked, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	p.OnlineStatus = models.PresenceStatus(online)
	p.Status = models.AccountStatus(status)
	return &p, nil
}

func (s *SQLiteStore) GetProfile(id uuid.UUID) (*models.User, error) {
	return s.scanProfile(s.db.QueryRow(
		"SELECT "+sqliteProfileColumns+" FROM profiles WHERE id = ?", id.String(),
	))
}

func (s *SQLiteStore) GetProfileByUsername(username string) (*models.User, error) {
	return s.scanProfile(s.db.QueryRow(
		"SELECT "+sqliteProfileColumns+" FROM profiles WHERE LOWER(username) = LOWER(?)", username,
	))
}

func (s *SQLiteStore) UpdateProfile(id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	_, err := s.db.Exec(`
		UPDATE profiles SET
			full_name  = COALESCE(?, full_name),
			bio        = COALESCE(?, bio),
			avatar_url = COALESCE(?, avatar_url),
			updated_at = ?
		WHERE id = ?`,
		upd.FullName, upd.Bio, upd.AvatarURL, time.Now(), id.String(),
	)
	if err != nil {
		return nil, err
	}
	return s.GetProfile(id)
}

func (s *SQLiteStore) SetPresence(id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	result, err := s.db.Exec(
		"UPDATE profiles SET online_status = ?, last_seen = ?, updated_at = ? WHERE id = ?",
		string(status), lastSeen, time.Now(), id.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
