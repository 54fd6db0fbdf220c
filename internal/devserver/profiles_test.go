package devserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileBody(id, username string) gin.H {
	now := time.Now().UTC().Format(time.RFC3339)
	return gin.H{
		"id":            id,
		"username":      username,
		"full_name":     "Test User",
		"email":         username + "@example.com",
		"online_status": "offline",
		"last_seen":     now,
		"status":        "active",
		"created_at":    now,
		"updated_at":    now,
	}
}

func TestInsertProfileAndFetch(t *testing.T) {
	s := newTestServer()
	token, id := register(t, s, "alice@example.com", "secret123", "alice")

	w := doJSON(s, "POST", "/rest/v1/profiles", token, profileBody(id, "alice"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(s, "GET", "/rest/v1/profiles/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decodeBody(t, w)["username"])
}

func TestInsertProfileIDMustMatchCaller(t *testing.T) {
	s := newTestServer()
	token, _ := register(t, s, "alice@example.com", "secret123", "alice")
	_, bobID := register(t, s, "bob@example.com", "secret123", "bob")

	w := doJSON(s, "POST", "/rest/v1/profiles", token, profileBody(bobID, "alice"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUsernameUniquenessIsCaseInsensitive(t *testing.T) {
	s := newTestServer()
	aliceToken, aliceID := register(t, s, "alice@example.com", "secret123", "alice")
	bobToken, bobID := register(t, s, "bob@example.com", "secret123", "bob")

	w := doJSON(s, "POST", "/rest/v1/profiles", aliceToken, profileBody(aliceID, "alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(s, "POST", "/rest/v1/profiles", bobToken, profileBody(bobID, "Alice"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "username_taken", decodeBody(t, w)["code"])
}

func TestGetProfileByUsernameIgnoresCase(t *testing.T) {
	s := newTestServer()
	token, id := register(t, s, "alice@example.com", "secret123", "alice")
	w := doJSON(s, "POST", "/rest/v1/profiles", token, profileBody(id, "alice"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(s, "GET", "/rest/v1/profiles/username/ALICE", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decodeBody(t, w)["id"])

	w = doJSON(s, "GET", "/rest/v1/profiles/username/nobody", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfileOwnRowOnly(t *testing.T) {
	s := newTestServer()
	aliceToken, aliceID := register(t, s, "alice@example.com", "secret123", "alice")
	bobToken, bobID := register(t, s, "bob@example.com", "secret123", "bob")
	require.Equal(t, http.StatusCreated, doJSON(s, "POST", "/rest/v1/profiles", aliceToken, profileBody(aliceID, "alice")).Code)
	require.Equal(t, http.StatusCreated, doJSON(s, "POST", "/rest/v1/profiles", bobToken, profileBody(bobID, "bob")).Code)

	w := doJSON(s, "PATCH", "/rest/v1/profiles/"+aliceID, bobToken, gin.H{"bio": "hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(s, "PATCH", "/rest/v1/profiles/"+aliceID, aliceToken, gin.H{"bio": "hello there"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "hello there", body["bio"])
	// Fields not named in the patch keep their stored value.
	assert.Equal(t, "Test User", body["full_name"])
}

func TestSetPresence(t *testing.T) {
	s := newTestServer()
	token, id := register(t, s, "alice@example.com", "secret123", "alice")
	require.Equal(t, http.StatusCreated, doJSON(s, "POST", "/rest/v1/profiles", token, profileBody(id, "alice")).Code)

	w := doJSON(s, "PATCH", "/rest/v1/profiles/"+id+"/presence", token, gin.H{"online_status": "sleeping"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(s, "PATCH", "/rest/v1/profiles/"+id+"/presence", token, gin.H{"online_status": "online"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(s, "GET", "/rest/v1/profiles/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", decodeBody(t, w)["online_status"])
}

func TestRestRequiresAuth(t *testing.T) {
	s := newTestServer()
	_, id := register(t, s, "alice@example.com", "secret123", "alice")

	w := doJSON(s, "GET", "/rest/v1/profiles/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsernameLookupNeedsNoToken(t *testing.T) {
	s := newTestServer()
	token, id := register(t, s, "alice@example.com", "secret123", "alice")
	require.Equal(t, http.StatusCreated, doJSON(s, "POST", "/rest/v1/profiles", token, profileBody(id, "alice")).Code)

	// Registration checks username uniqueness before any identity
	// exists, so this endpoint answers without a bearer token.
	w := doJSON(s, "GET", "/rest/v1/profiles/username/alice", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, "GET", "/rest/v1/profiles/username/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
