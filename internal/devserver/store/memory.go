package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/models"
)

// MemoryStore keeps everything in maps. Used by tests and throwaway
// runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*AuthUser
	profiles map[uuid.UUID]*models.User
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*AuthUser),
		profiles: make(map[uuid.UUID]*models.User),
	}
}

func (s *MemoryStore) CreateAuthUser(email, passwordHash string, confirmed bool) (*AuthUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, ErrEmailExists
		}
	}
	u := &AuthUser{
		ID:             uuid.New(),
		Email:          email,
		PasswordHash:   passwordHash,
		EmailConfirmed: confirmed,
		CreatedAt:      time.Now(),
	}
	s.users[u.ID] = u
	out := *u
	return &out, nil
}

func (s *MemoryStore) GetAuthUserByEmail(email string) (*AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetAuthUserByID(id uuid.UUID) (*AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) ConfirmEmail(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.EmailConfirmed = true
	return nil
}

func (s *MemoryStore) UpdatePassword(id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *MemoryStore) DeleteAuthUser(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.profiles, id)
	return nil
}

func (s *MemoryStore) InsertProfile(profile *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Username, profile.Username) {
			return ErrUsernameTaken
		}
	}
	p := *profile
	s.profiles[p.ID] = &p
	return nil
}

func (s *MemoryStore) GetProfile(id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) GetProfileByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Username, username) {
			out := *p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateProfile(id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	p.UpdatedAt = time.Now()
	out := *p
	return &out, nil
}

func (s *MemoryStore) SetPresence(id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.OnlineStatus = status
	p.LastSeen = lastSeen
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
