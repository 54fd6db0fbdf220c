package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lfarias/mensageiro/internal/backend"
	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/models"
)

// MockAuthAPI implements backend.AuthAPI for testing.
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) GetSession(ctx context.Context) (*backend.AuthSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthSession), args.Error(1)
}

func (m *MockAuthAPI) SignInWithPassword(ctx context.Context, email, password string) (*backend.AuthSession, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthSession), args.Error(1)
}

func (m *MockAuthAPI) SignUp(ctx context.Context, email, password string, data models.SignUpData) (*backend.AuthSession, error) {
	args := m.Called(ctx, email, password, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.AuthSession), args.Error(1)
}

func (m *MockAuthAPI) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuthAPI) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAuthAPI) ResetPasswordForEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuthAPI) UpdatePassword(ctx context.Context, recoveryToken, newPassword string) error {
	return m.Called(ctx, recoveryToken, newPassword).Error(0)
}

func (m *MockAuthAPI) Subscribe(ctx context.Context, fn func(backend.Event)) (func(), error) {
	args := m.Called(ctx, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockProfileStore implements backend.ProfileStore for testing.
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfileStore) GetProfileByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfileStore) InsertProfile(ctx context.Context, profile *models.User) error {
	return m.Called(ctx, profile).Error(0)
}

func (m *MockProfileStore) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockProfileStore) SetPresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	return m.Called(ctx, id, status, lastSeen).Error(0)
}

// MockObjectStore implements backend.ObjectStore for testing.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	return m.Called(ctx, bucket, key, data, opts).Error(0)
}

func (m *MockObjectStore) Remove(ctx context.Context, bucket string, keys []string) error {
	return m.Called(ctx, bucket, keys).Error(0)
}

func (m *MockObjectStore) PublicURL(bucket, key string) string {
	return m.Called(bucket, key).String(0)
}

func newMocks() (*MockAuthAPI, *MockProfileStore, *MockObjectStore, *Session) {
	auth := new(MockAuthAPI)
	profiles := new(MockProfileStore)
	objects := new(MockObjectStore)
	return auth, profiles, objects, New(auth, profiles, objects)
}

func testUser() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		FullName:     "Alice Doe",
		Email:        "alice@example.com",
		OnlineStatus: models.PresenceOffline,
		Status:       models.AccountActive,
	}
}

func TestInitResolvesToUnauthenticated(t *testing.T) {
	auth, _, _, s := newMocks()
	auth.On("GetSession", mock.Anything).Return(nil, nil)

	assert.Equal(t, StateLoading, s.State())
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.Nil(t, s.User())
}

func TestInitRestoresSession(t *testing.T) {
	auth, profiles, _, s := newMocks()
	user := testUser()
	auth.On("GetSession", mock.Anything).Return(&backend.AuthSession{UserID: user.ID}, nil)
	profiles.On("GetProfile", mock.Anything, user.ID).Return(user, nil)
	profiles.On("SetPresence", mock.Anything, user.ID, models.PresenceOnline, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, user.Username, s.User().Username)
	assert.Equal(t, models.PresenceOnline, s.User().OnlineStatus)
}

func TestSignInSuccess(t *testing.T) {
	auth, profiles, _, s := newMocks()
	user := testUser()
	auth.On("SignInWithPassword", mock.Anything, user.Email, "secret123").
		Return(&backend.AuthSession{UserID: user.ID, AccessToken: "tok"}, nil)
	profiles.On("GetProfile", mock.Anything, user.ID).Return(user, nil)
	profiles.On("SetPresence", mock.Anything, user.ID, models.PresenceOnline, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)

	var seen []State
	s.OnChange(func(state State, _ *models.User) { seen = append(seen, state) })

	require.NoError(t, s.SignIn(context.Background(), user.Email, "secret123"))
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, []State{StateAuthenticated}, seen)
}

func TestSignInErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		response error
		wantKind errs.AuthKind
	}{
		{
			name:     "wrong password",
			response: &backend.APIError{Status: 400, Code: backend.CodeInvalidCredentials},
			wantKind: errs.AuthInvalidCredentials,
		},
		{
			name:     "unconfirmed email",
			response: &backend.APIError{Status: 400, Code: backend.CodeEmailUnconfirmed},
			wantKind: errs.AuthEmailUnconfirmed,
		},
		{
			name:     "rate limited",
			response: &backend.APIError{Status: 429, Code: backend.CodeRateLimited},
			wantKind: errs.AuthRateLimited,
		},
		{
			name:     "network failure",
			response: errors.New("connection refused"),
			wantKind: errs.AuthUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, _, _, s := newMocks()
			auth.On("SignInWithPassword", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tt.response)

			err := s.SignIn(context.Background(), "alice@example.com", "secret123")
			kind, ok := errs.AuthKindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, kind)
			assert.NotEqual(t, StateAuthenticated, s.State())
		})
	}
}

func TestSignInValidatesInputLocally(t *testing.T) {
	_, _, _, s := newMocks()

	assert.True(t, errs.IsValidation(s.SignIn(context.Background(), "not-an-email", "secret123")))
	assert.True(t, errs.IsValidation(s.SignIn(context.Background(), "alice@example.com", "abc")))
	// No mock expectations were set: the backend was never called.
}

func TestSignUpUsernameTakenCaseInsensitive(t *testing.T) {
	auth, profiles, _, s := newMocks()
	existing := testUser()
	profiles.On("GetProfileByUsername", mock.Anything, "Alice").Return(existing, nil)

	err := s.SignUp(context.Background(), "new@example.com", "secret123", models.SignUpData{
		Username: "Alice",
		FullName: "Another Alice",
	})
	kind, ok := errs.AuthKindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.AuthUsernameTaken, kind)
	auth.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSignUpCompensatesOnProfileFailure(t *testing.T) {
	auth, profiles, _, s := newMocks()
	id := uuid.New()
	data := models.SignUpData{Username: "bob", FullName: "Bob"}

	profiles.On("GetProfileByUsername", mock.Anything, "bob").Return(nil, backend.ErrNotFound)
	auth.On("SignUp", mock.Anything, "bob@example.com", "secret123", data).
		Return(&backend.AuthSession{UserID: id, AccessToken: "tok"}, nil)
	profiles.On("InsertProfile", mock.Anything, mock.Anything).Return(fmt.Errorf("insert failed"))
	auth.On("DeleteUser", mock.Anything, id).Return(nil)

	err := s.SignUp(context.Background(), "bob@example.com", "secret123", data)
	kind, ok := errs.AuthKindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.AuthUnknown, kind)
	assert.NotEqual(t, StateAuthenticated, s.State())
	auth.AssertCalled(t, "DeleteUser", mock.Anything, id)
}

func TestSignUpAwaitingConfirmationStaysUnauthenticated(t *testing.T) {
	auth, profiles, _, s := newMocks()
	id := uuid.New()
	data := models.SignUpData{Username: "bob", FullName: "Bob"}

	profiles.On("GetProfileByUsername", mock.Anything, "bob").Return(nil, backend.ErrNotFound)
	auth.On("SignUp", mock.Anything, "bob@example.com", "secret123", data).
		Return(&backend.AuthSession{UserID: id}, nil)

	require.NoError(t, s.SignUp(context.Background(), "bob@example.com", "secret123", data))
	assert.Equal(t, StateUnauthenticated, s.State())
	// No token, no insert. The profile row waits for the confirmed sign-in.
	profiles.AssertNotCalled(t, "InsertProfile", mock.Anything, mock.Anything)
}

func TestSignInWritesProfileDeferredAtSignUp(t *testing.T) {
	auth, profiles, _, s := newMocks()
	id := uuid.New()
	data := models.SignUpData{Username: "bob", FullName: "Bob"}

	profiles.On("GetProfileByUsername", mock.Anything, "bob").Return(nil, backend.ErrNotFound)
	auth.On("SignUp", mock.Anything, "bob@example.com", "secret123", data).
		Return(&backend.AuthSession{UserID: id}, nil)
	require.NoError(t, s.SignUp(context.Background(), "bob@example.com", "secret123", data))
	require.Equal(t, StateUnauthenticated, s.State())

	auth.On("SignInWithPassword", mock.Anything, "bob@example.com", "secret123").
		Return(&backend.AuthSession{UserID: id, AccessToken: "tok"}, nil)
	profiles.On("GetProfile", mock.Anything, id).Return(nil, backend.ErrNotFound)
	profiles.On("InsertProfile", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.ID == id && u.Username == "bob"
	})).Return(nil)
	profiles.On("SetPresence", mock.Anything, id, mock.Anything, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)

	require.NoError(t, s.SignIn(context.Background(), "bob@example.com", "secret123"))
	assert.Equal(t, StateAuthenticated, s.State())
	require.NotNil(t, s.User())
	assert.Equal(t, "bob", s.User().Username)
	profiles.AssertCalled(t, "InsertProfile", mock.Anything, mock.Anything)
}

func TestRequestPasswordReset(t *testing.T) {
	auth, _, _, s := newMocks()

	err := s.RequestPasswordReset(context.Background(), "not-an-email")
	assert.True(t, errs.IsValidation(err))
	auth.AssertNotCalled(t, "ResetPasswordForEmail", mock.Anything, mock.Anything)

	auth.On("ResetPasswordForEmail", mock.Anything, "bob@example.com").Return(nil)
	assert.NoError(t, s.RequestPasswordReset(context.Background(), " bob@example.com "))
}

func TestConfirmPasswordReset(t *testing.T) {
	auth, _, _, s := newMocks()

	assert.True(t, errs.IsValidation(s.ConfirmPasswordReset(context.Background(), "", "secret123")))
	assert.True(t, errs.IsValidation(s.ConfirmPasswordReset(context.Background(), "rtok", "short")))
	auth.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)

	auth.On("UpdatePassword", mock.Anything, "rtok", "secret123").Return(nil)
	assert.NoError(t, s.ConfirmPasswordReset(context.Background(), "rtok", "secret123"))
}

func TestSignOutClearsLocalStateEvenOnRemoteFailure(t *testing.T) {
	auth, profiles, _, s := newMocks()
	user := testUser()
	auth.On("SignInWithPassword", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.AuthSession{UserID: user.ID, AccessToken: "tok"}, nil)
	profiles.On("GetProfile", mock.Anything, user.ID).Return(user, nil)
	profiles.On("SetPresence", mock.Anything, user.ID, mock.Anything, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)
	require.NoError(t, s.SignIn(context.Background(), user.Email, "secret123"))

	auth.On("SignOut", mock.Anything).Return(errors.New("server down"))

	err := s.SignOut(context.Background())
	kind, ok := errs.AuthKindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.AuthUnknown, kind)
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.Nil(t, s.User())
}

func TestUpdateProfileNoPartialApply(t *testing.T) {
	auth, profiles, _, s := newMocks()
	user := testUser()
	auth.On("SignInWithPassword", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.AuthSession{UserID: user.ID, AccessToken: "tok"}, nil)
	profiles.On("GetProfile", mock.Anything, user.ID).Return(user, nil)
	profiles.On("SetPresence", mock.Anything, user.ID, mock.Anything, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)
	require.NoError(t, s.SignIn(context.Background(), user.Email, "secret123"))

	newBio := "updated bio"
	profiles.On("UpdateProfile", mock.Anything, user.ID, models.ProfileUpdate{Bio: &newBio}).
		Return(nil, errors.New("write failed"))

	err := s.UpdateProfile(context.Background(), models.ProfileUpdate{Bio: &newBio})
	var pe *errs.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, user.Bio, s.User().Bio)
}

func TestUpdateAvatarRollsBackOnUploadFailure(t *testing.T) {
	auth, profiles, objects, s := newMocks()
	user := testUser()
	user.AvatarURL = "https://cdn.test/avatars/original.png"
	auth.On("SignInWithPassword", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.AuthSession{UserID: user.ID, AccessToken: "tok"}, nil)
	profiles.On("GetProfile", mock.Anything, user.ID).Return(user, nil)
	profiles.On("SetPresence", mock.Anything, user.ID, mock.Anything, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)
	require.NoError(t, s.SignIn(context.Background(), user.Email, "secret123"))

	objects.On("Upload", mock.Anything, AvatarBucket, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket gone"))

	err := s.UpdateAvatar(context.Background(), "me.png", "image/png", []byte("png-bytes"))
	var pe *errs.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "https://cdn.test/avatars/original.png", s.User().AvatarURL)
	profiles.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAvatarRejectsOversizeAndWrongType(t *testing.T) {
	auth, profiles, objects, s := newMocks()
	user := testUser()
	auth.On("SignInWithPassword", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.AuthSession{UserID: user.ID, AccessToken: "tok"}, nil)
	profiles.On("GetProfile", mock.Anything, user.ID).Return(user, nil)
	profiles.On("SetPresence", mock.Anything, user.ID, mock.Anything, mock.Anything).Return(nil)
	auth.On("Subscribe", mock.Anything, mock.Anything).Return(func() {}, nil)
	require.NoError(t, s.SignIn(context.Background(), user.Email, "secret123"))

	big := make([]byte, (1<<20)+1)
	assert.True(t, errs.IsValidation(s.UpdateAvatar(context.Background(), "big.png", "image/png", big)))
	assert.True(t, errs.IsValidation(s.UpdateAvatar(context.Background(), "anim.gif", "image/gif", []byte("gif"))))
	objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
