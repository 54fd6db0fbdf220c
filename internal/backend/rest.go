package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/logger"
	"github.com/lfarias/mensageiro/internal/models"
)

var log = logger.New("backend")

// Client talks to the hosted backend (or the local devserver) over
// HTTP and holds the bearer token for the active session.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session *AuthSession
}

// NewClient creates a REST client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", baseURL)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// tokenResponse is the auth endpoints' success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	}
}

func decodeAPIError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.Code = CodeRateLimited
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
	}
	return apiErr
}

func (c *Client) setSession(tr *tokenResponse) *AuthSession {
	s := &AuthSession{
		AccessToken: tr.AccessToken,
		UserID:      tr.User.ID,
		Email:       tr.User.Email,
		ExpiresAt:   tr.ExpiresAt,
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = tokenExpiry(tr.AccessToken)
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client only needs it to decide when the cached session is stale.
func tokenExpiry(raw string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// GetSession returns the cached session if it has not expired.
func (c *Client) GetSession(ctx context.Context) (*AuthSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	if !c.session.ExpiresAt.IsZero() && time.Now().After(c.session.ExpiresAt) {
		log.Debug("cached session expired at %s", c.session.ExpiresAt)
		c.session = nil
		return nil, nil
	}
	s := *c.session
	return &s, nil
}

// SignInWithPassword performs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", map[string]string{
		"email":    email,
		"password": password,
	}, &tr)
	if err != nil {
		return nil, err
	}
	return c.setSession(&tr), nil
}

// SignUp registers a new identity. The returned session carries an
// access token only when the backend auto-confirms emails.
func (c *Client) SignUp(ctx context.Context, email, password string, data models.SignUpData) (*AuthSession, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     data,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return &AuthSession{UserID: tr.User.ID, Email: tr.User.Email}, nil
	}
	return c.setSession(&tr), nil
}

// SignOut revokes the session remotely and always drops the cached
// token, so a failed call still leaves the client unauthenticated.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return err
}

// DeleteUser removes a half-created identity.
func (c *Client) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+id.String(), nil, nil)
}

// ResetPasswordForEmail starts a password recovery.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", map[string]string{
		"email": email,
	}, nil)
}

// UpdatePassword sets a new password using a recovery token. The token
// authorizes this one request; the cached session, if any, is not
// touched.
func (c *Client) UpdatePassword(ctx context.Context, recoveryToken, newPassword string) error {
	buf, err := json.Marshal(map[string]string{"password": newPassword})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/auth/v1/user", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+recoveryToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// GetProfile fetches a profile row by id.
func (c *Client) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles/"+id.String(), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProfileByUsername fetches a profile row by username,
// case-insensitively.
func (c *Client) GetProfileByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	path := "/rest/v1/profiles/username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// InsertProfile creates the profile row for a new identity.
func (c *Client) InsertProfile(ctx context.Context, profile *models.User) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/profiles", profile, nil)
}

// UpdateProfile applies a partial update and returns the stored row.
func (c *Client) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/profiles/"+id.String(), upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetPresence records a presence transition.
func (c *Client) SetPresence(ctx context.Context, id uuid.UUID, status models.PresenceStatus, lastSeen time.Time) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/profiles/"+id.String()+"/presence", map[string]interface{}{
		"online_status": status,
		"last_seen":     lastSeen,
	}, nil)
}

// Upload stores an object. The body is raw bytes, not JSON.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error {
	path := fmt.Sprintf("/storage/v1/object/%s/%s", url.PathEscape(bucket), key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", "max-age="+opts.CacheControl)
	}
	if opts.Upsert {
		req.Header.Set("x-upsert", "true")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Remove deletes objects from a bucket.
func (c *Client) Remove(ctx context.Context, bucket string, keys []string) error {
	return c.do(ctx, http.MethodDelete, "/storage/v1/object/"+url.PathEscape(bucket), map[string][]string{
		"keys": keys,
	}, nil)
}

// PublicURL resolves the public URL for an object.
func (c *Client) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, url.PathEscape(bucket), key)
}
