package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfarias/mensageiro/internal/backend"
	"github.com/lfarias/mensageiro/internal/devserver"
	"github.com/lfarias/mensageiro/internal/devserver/store"
	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/models"
	"github.com/lfarias/mensageiro/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newLiveSession wires a Session to a real emulator over HTTP so the
// whole client stack is on the line, not mocks.
func newLiveSession(t *testing.T, mutate ...func(*devserver.Config)) (*session.Session, string) {
	t.Helper()
	cfg := devserver.DefaultConfig()
	cfg.LoginRPS = 0
	for _, fn := range mutate {
		fn(&cfg)
	}
	srv := httptest.NewServer(devserver.New(cfg, store.NewMemory()).Router())
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL)
	require.NoError(t, err)
	return session.New(client, client, client), srv.URL
}

func TestRegisterSignInAgainstServer(t *testing.T) {
	s, _ := newLiveSession(t)
	ctx := context.Background()

	err := s.SignUp(ctx, "alice@example.com", "secret123", models.SignUpData{
		Username: "alice",
		FullName: "Alice Doe",
	})
	require.NoError(t, err)
	require.Equal(t, session.StateAuthenticated, s.State())
	require.NotNil(t, s.User())
	assert.Equal(t, "alice", s.User().Username)

	// A second account may not claim the same name, whatever the case.
	err = s.SignUp(ctx, "other@example.com", "secret123", models.SignUpData{
		Username: "Alice",
		FullName: "Impostor",
	})
	kind, ok := errs.AuthKindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.AuthUsernameTaken, kind)
}

func TestConfirmationFlowAgainstServer(t *testing.T) {
	s, baseURL := newLiveSession(t, func(cfg *devserver.Config) {
		cfg.Autoconfirm = false
	})
	ctx := context.Background()

	err := s.SignUp(ctx, "bob@example.com", "secret123", models.SignUpData{
		Username: "bob",
		FullName: "Bob Roe",
	})
	require.NoError(t, err)
	require.Equal(t, session.StateUnauthenticated, s.State())

	err = s.SignIn(ctx, "bob@example.com", "secret123")
	kind, ok := errs.AuthKindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.AuthEmailUnconfirmed, kind)

	confirmEmail(t, baseURL, "bob@example.com")

	require.NoError(t, s.SignIn(ctx, "bob@example.com", "secret123"))
	require.Equal(t, session.StateAuthenticated, s.State())
	require.NotNil(t, s.User())
	assert.Equal(t, "bob", s.User().Username)
	assert.Equal(t, "Bob Roe", s.User().FullName)
}

func TestPasswordResetAgainstServer(t *testing.T) {
	s, baseURL := newLiveSession(t)
	ctx := context.Background()

	require.NoError(t, s.SignUp(ctx, "carol@example.com", "secret123", models.SignUpData{
		Username: "carol",
		FullName: "Carol Lima",
	}))
	require.NoError(t, s.SignOut(ctx))

	require.NoError(t, s.RequestPasswordReset(ctx, "carol@example.com"))
	token := recoveryToken(t, baseURL, "carol@example.com")
	require.NoError(t, s.ConfirmPasswordReset(ctx, token, "brandnew1"))

	err := s.SignIn(ctx, "carol@example.com", "secret123")
	kind, ok := errs.AuthKindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.AuthInvalidCredentials, kind)

	require.NoError(t, s.SignIn(ctx, "carol@example.com", "brandnew1"))
	assert.Equal(t, session.StateAuthenticated, s.State())
}

// confirmEmail hits the emulator's mailbox-free confirmation endpoint.
func confirmEmail(t *testing.T, baseURL, email string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email})
	resp, err := http.Post(baseURL+"/auth/v1/confirm", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// recoveryToken reads the token the emulator hands back in place of a
// recovery email.
func recoveryToken(t *testing.T, baseURL, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email})
	resp, err := http.Post(baseURL+"/auth/v1/recover", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		RecoveryToken string `json:"recovery_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.RecoveryToken)
	return out.RecoveryToken
}
