// Package session holds the authenticated identity. It is the single
// source of truth for "who is using the client"; the conversation
// engine consults it only to stamp messages with the acting user.
//
// A Session moves through Loading -> Unauthenticated <-> Authenticated
// and is not safe for concurrent use: every operation runs on the UI's
// single logical thread. The only background entry is the realtime
// feed, which funnels through invalidate.
package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/backend"
	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/logger"
	"github.com/lfarias/mensageiro/internal/models"
	"github.com/lfarias/mensageiro/internal/upload"
)

var log = logger.New("session")

// AvatarBucket is where profile pictures live.
const AvatarBucket = "avatars"

// State is the authentication state of the client.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session tracks the authenticated identity and broadcasts changes to
// its listeners.
type Session struct {
	auth     backend.AuthAPI
	profiles backend.ProfileStore
	objects  backend.ObjectStore

	state       State
	user        *models.User
	// pending is a profile row waiting for email confirmation; it is
	// written to the store on the first confirmed sign-in, when a
	// token exists to authorize the insert.
	pending     *models.User
	listeners   []func(State, *models.User)
	unsubscribe func()
	validate    *validator.Validate
}

// New creates a session in the Loading state. Call Init to resolve it.
func New(auth backend.AuthAPI, profiles backend.ProfileStore, objects backend.ObjectStore) *Session {
	return &Session{
		auth:     auth,
		profiles: profiles,
		objects:  objects,
		state:    StateLoading,
		validate: validator.New(),
	}
}

// State returns the current authentication state.
func (s *Session) State() State { return s.state }

// User returns the authenticated identity, or nil.
func (s *Session) User() *models.User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// OnChange registers a listener invoked after every state or profile
// change.
func (s *Session) OnChange(fn func(State, *models.User)) {
	s.listeners = append(s.listeners, fn)
}

func (s *Session) setState(state State, user *models.User) {
	s.state = state
	s.user = user
	for _, fn := range s.listeners {
		fn(state, s.User())
	}
}

// Init resolves the initial session check and subscribes to external
// invalidation events.
func (s *Session) Init(ctx context.Context) error {
	as, err := s.auth.GetSession(ctx)
	if err != nil {
		s.setState(StateUnauthenticated, nil)
		return errs.Persistence("session check", err)
	}
	if as == nil {
		s.setState(StateUnauthenticated, nil)
		return nil
	}

	user, err := s.profiles.GetProfile(ctx, as.UserID)
	if err != nil {
		log.Error("fetching profile for restored session: %v", err)
		s.setState(StateUnauthenticated, nil)
		return errs.Persistence("profile fetch", err)
	}

	s.markPresence(ctx, user, models.PresenceOnline)
	s.setState(StateAuthenticated, user)
	s.subscribe(ctx)
	return nil
}

// subscribe hooks the realtime feed so a sign-out elsewhere drops this
// client back to unauthenticated.
func (s *Session) subscribe(ctx context.Context) {
	if s.unsubscribe != nil {
		return
	}
	selfID := s.user.ID
	cancel, err := s.auth.Subscribe(ctx, func(ev backend.Event) {
		if ev.Type == backend.EventSignedOut && ev.UserID == selfID {
			s.invalidate()
		}
	})
	if err != nil {
		log.Warn("realtime subscription unavailable: %v", err)
		return
	}
	s.unsubscribe = cancel
}

// invalidate clears local identity after an external session
// invalidation.
func (s *Session) invalidate() {
	log.Info("session invalidated externally")
	s.dropSubscription()
	s.setState(StateUnauthenticated, nil)
}

func (s *Session) dropSubscription() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Close tears the session holder down without signing out.
func (s *Session) Close() {
	s.dropSubscription()
}

// credentials is validated before any network call.
type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func (s *Session) checkCredentials(email, password string) error {
	err := s.validate.Struct(credentials{Email: email, Password: password})
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		switch invalid[0].Field() {
		case "Email":
			return errs.Validation("a valid email address is required")
		case "Password":
			return errs.Validation("password must be at least 6 characters")
		}
	}
	return errs.Validation("invalid credentials input")
}

// mapAuthErr translates a backend failure into the auth taxonomy.
func mapAuthErr(err error) error {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return errs.Auth(errs.AuthUnknown, err)
	}
	switch apiErr.Code {
	case backend.CodeInvalidCredentials:
		return errs.Auth(errs.AuthInvalidCredentials, err)
	case backend.CodeEmailUnconfirmed:
		return errs.Auth(errs.AuthEmailUnconfirmed, err)
	case backend.CodeEmailExists:
		return errs.Auth(errs.AuthEmailTaken, err)
	case backend.CodeUsernameTaken:
		return errs.Auth(errs.AuthUsernameTaken, err)
	case backend.CodeRateLimited:
		return errs.Auth(errs.AuthRateLimited, err)
	}
	return errs.Auth(errs.AuthUnknown, err)
}

// SignIn establishes an identity and marks it online.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	if err := s.checkCredentials(email, password); err != nil {
		return err
	}

	as, err := s.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return mapAuthErr(err)
	}

	user, err := s.profiles.GetProfile(ctx, as.UserID)
	if errors.Is(err, backend.ErrNotFound) {
		user, err = s.createPendingProfile(ctx, as.UserID, email)
	}
	if err != nil {
		return errs.Persistence("profile fetch", err)
	}

	s.markPresence(ctx, user, models.PresenceOnline)
	s.setState(StateAuthenticated, user)
	s.subscribe(ctx)
	log.Info("signed in as %s", user.Username)
	return nil
}

// createPendingProfile writes the profile row held back from a
// registration that needed email confirmation. Only runs once a signed
// token exists; without pending data the missing row is an error.
func (s *Session) createPendingProfile(ctx context.Context, userID uuid.UUID, email string) (*models.User, error) {
	if s.pending == nil || !strings.EqualFold(s.pending.Email, strings.TrimSpace(email)) {
		return nil, backend.ErrNotFound
	}
	profile := *s.pending
	profile.ID = userID
	if err := s.profiles.InsertProfile(ctx, &profile); err != nil {
		return nil, err
	}
	s.pending = nil
	log.Info("created deferred profile for %s", profile.Username)
	return &profile, nil
}

// markPresence records a presence transition, updating the local copy
// on success. Presence is best-effort: a failure is logged, never
// surfaced.
func (s *Session) markPresence(ctx context.Context, user *models.User, status models.PresenceStatus) {
	now := time.Now()
	if err := s.profiles.SetPresence(ctx, user.ID, status, now); err != nil {
		log.Warn("presence update failed: %v", err)
		return
	}
	user.OnlineStatus = status
	user.LastSeen = now
}

// SignUp validates username uniqueness, creates the identity, then the
// profile row. A profile failure after the identity exists triggers a
// best-effort compensating deletion; if that also fails an orphaned
// identity may remain and is only logged.
func (s *Session) SignUp(ctx context.Context, email, password string, data models.SignUpData) error {
	if err := s.checkCredentials(email, password); err != nil {
		return err
	}
	if err := s.validate.Struct(data); err != nil {
		return errs.Validation("username must be 3-30 characters and full name is required")
	}
	username := strings.TrimSpace(data.Username)

	_, err := s.profiles.GetProfileByUsername(ctx, username)
	switch {
	case err == nil:
		return errs.Auth(errs.AuthUsernameTaken, fmt.Errorf("username %q exists", username))
	case !errors.Is(err, backend.ErrNotFound):
		return errs.Persistence("username lookup", err)
	}

	as, err := s.auth.SignUp(ctx, strings.TrimSpace(email), password, data)
	if err != nil {
		return mapAuthErr(err)
	}

	now := time.Now()
	profile := &models.User{
		ID:           as.UserID,
		Username:     username,
		FullName:     strings.TrimSpace(data.FullName),
		Email:        strings.TrimSpace(email),
		OnlineStatus: models.PresenceOffline,
		LastSeen:     now,
		Status:       models.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Without an access token the account still needs email
	// confirmation and no call can authorize the profile insert yet;
	// hold the row back until the first confirmed sign-in.
	if as.AccessToken == "" {
		s.pending = profile
		log.Info("registered %s, awaiting email confirmation", username)
		s.setState(StateUnauthenticated, nil)
		return nil
	}

	if err := s.profiles.InsertProfile(ctx, profile); err != nil {
		if delErr := s.auth.DeleteUser(ctx, as.UserID); delErr != nil {
			log.Error("compensating identity deletion failed, orphan %s remains: %v", as.UserID, delErr)
		}
		if errors.Is(err, backend.ErrNotFound) {
			return errs.Auth(errs.AuthUnknown, err)
		}
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Code == backend.CodeUsernameTaken {
			return errs.Auth(errs.AuthUsernameTaken, err)
		}
		return errs.Auth(errs.AuthUnknown, err)
	}

	s.markPresence(ctx, profile, models.PresenceOnline)
	s.setState(StateAuthenticated, profile)
	s.subscribe(ctx)
	log.Info("registered and signed in as %s", username)
	return nil
}

// SignOut marks the identity offline and clears local state. The local
// clear happens even when the remote call fails, so the UI always
// returns to unauthenticated.
func (s *Session) SignOut(ctx context.Context) error {
	if s.state != StateAuthenticated {
		return nil
	}

	s.markPresence(ctx, s.user, models.PresenceOffline)
	err := s.auth.SignOut(ctx)

	s.dropSubscription()
	s.setState(StateUnauthenticated, nil)

	if err != nil {
		return errs.Auth(errs.AuthUnknown, err)
	}
	log.Info("signed out")
	return nil
}

// UpdateProfile persists a partial profile update. Local state changes
// only when the store accepts the whole update; there is no partial
// apply.
func (s *Session) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error {
	if s.state != StateAuthenticated {
		return errs.Validation("not signed in")
	}

	updated, err := s.profiles.UpdateProfile(ctx, s.user.ID, upd)
	if err != nil {
		return errs.Persistence("profile update", err)
	}

	s.setState(StateAuthenticated, updated)
	return nil
}

// UpdateAvatar validates, uploads, and points the profile at the new
// avatar. A failure at any step leaves the locally held avatar
// reference untouched.
func (s *Session) UpdateAvatar(ctx context.Context, filename, contentType string, data []byte) error {
	if s.state != StateAuthenticated {
		return errs.Validation("not signed in")
	}

	kind, err := upload.Check(filename, contentType, int64(len(data)))
	if err != nil {
		return err
	}
	if kind != models.AttachmentImage {
		return errs.Validation("avatar must be a JPEG or PNG image")
	}

	key := fmt.Sprintf("%s/%d%s", s.user.ID, time.Now().UnixMilli(), path.Ext(filename))
	err = s.objects.Upload(ctx, AvatarBucket, key, data, backend.UploadOptions{
		ContentType:  contentType,
		CacheControl: "3600",
		Upsert:       true,
	})
	if err != nil {
		return errs.Persistence("avatar upload", err)
	}

	avatarURL := s.objects.PublicURL(AvatarBucket, key)
	return s.UpdateProfile(ctx, models.ProfileUpdate{AvatarURL: &avatarURL})
}

// RequestPasswordReset asks the backend to start a password recovery
// for email. The answer is the same whether or not the email is
// registered; the recovery token travels out of band.
func (s *Session) RequestPasswordReset(ctx context.Context, email string) error {
	if err := s.validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return errs.Validation("a valid email address is required")
	}
	if err := s.auth.ResetPasswordForEmail(ctx, strings.TrimSpace(email)); err != nil {
		return mapAuthErr(err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a recovery token. The
// session state does not change; the user signs in with the new
// password afterwards.
func (s *Session) ConfirmPasswordReset(ctx context.Context, recoveryToken, newPassword string) error {
	if strings.TrimSpace(recoveryToken) == "" {
		return errs.Validation("recovery token is required")
	}
	if len(newPassword) < 6 {
		return errs.Validation("password must be at least 6 characters")
	}
	if err := s.auth.UpdatePassword(ctx, recoveryToken, newPassword); err != nil {
		return mapAuthErr(err)
	}
	log.Info("password reset completed")
	return nil
}

// Stamp returns the identity used to attribute local messages.
func (s *Session) Stamp() (uuid.UUID, bool) {
	if s.user == nil {
		return uuid.Nil, false
	}
	return s.user.ID, true
}
