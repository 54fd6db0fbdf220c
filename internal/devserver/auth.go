package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lfarias/mensageiro/internal/devserver/store"
	"github.com/lfarias/mensageiro/internal/models"
)

type signUpRequest struct {
	Email    string            `json:"email" binding:"required,email"`
	Password string            `json:"password" binding:"required,min=6"`
	Data     models.SignUpData `json:"data"`
}

type tokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) tokenBody(u *store.AuthUser) (gin.H, error) {
	token, expiry, err := s.issueToken(u)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"access_token": token,
		"expires_at":   expiry,
		"user": gin.H{
			"id":    u.ID,
			"email": u.Email,
		},
	}, nil
}

// handleSignUp creates an identity. With autoconfirm off the response
// carries no token and the account stays unusable until confirmed.
func (s *Server) handleSignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to process password"))
		return
	}

	user, err := s.store.CreateAuthUser(req.Email, string(hash), s.cfg.Autoconfirm)
	if err == store.ErrEmailExists {
		c.JSON(http.StatusConflict, apiError("email_exists", "Email already registered"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to create user"))
		return
	}

	log.Info("registered %s (confirmed=%v)", user.Email, user.EmailConfirmed)

	if !user.EmailConfirmed {
		c.JSON(http.StatusCreated, gin.H{
			"user": gin.H{"id": user.ID, "email": user.Email},
		})
		return
	}

	body, err := s.tokenBody(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to generate token"))
		return
	}
	c.JSON(http.StatusCreated, body)
}

// handleToken is the password grant.
func (s *Server) handleToken(c *gin.Context) {
	if !s.loginLimiter.allow(c.ClientIP()) {
		s.metrics.logins.WithLabelValues("rate_limited").Inc()
		c.JSON(http.StatusTooManyRequests, apiError("rate_limited", "Too many login attempts"))
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}

	user, err := s.store.GetAuthUserByEmail(req.Email)
	if err != nil {
		// Same answer as a wrong password so the endpoint does not
		// leak which emails exist.
		s.metrics.logins.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, apiError("invalid_credentials", "Invalid login credentials"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.metrics.logins.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, apiError("invalid_credentials", "Invalid login credentials"))
		return
	}

	if !user.EmailConfirmed {
		s.metrics.logins.WithLabelValues("unconfirmed").Inc()
		c.JSON(http.StatusBadRequest, apiError("email_not_confirmed", "Email not confirmed"))
		return
	}

	body, err := s.tokenBody(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to generate token"))
		return
	}
	s.metrics.logins.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, body)
}

// handleConfirm flips the email-confirmed flag. The hosted platform
// does this from an email link; here it is an endpoint so development
// flows do not need a mailbox.
func (s *Server) handleConfirm(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}

	user, err := s.store.GetAuthUserByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, apiError("not_found", "No such user"))
		return
	}
	if err := s.store.ConfirmEmail(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to confirm email"))
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRecover starts a password reset. The hosted platform emails a
// recovery link; here the token comes back in the response so
// development flows do not need a mailbox.
func (s *Server) handleRecover(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}

	user, err := s.store.GetAuthUserByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, apiError("not_found", "No such user"))
		return
	}

	token, _, err := s.issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to generate token"))
		return
	}
	log.Info("password recovery requested for %s", user.Email)
	c.JSON(http.StatusOK, gin.H{"recovery_token": token})
}

// handleUpdateUser changes the caller's password. The bearer token may
// be a recovery token or a regular access token; both name the user.
func (s *Server) handleUpdateUser(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var req struct {
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to process password"))
		return
	}
	if err := s.store.UpdatePassword(userID, string(hash)); err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, apiError("not_found", "No such user"))
			return
		}
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to update password"))
		return
	}
	log.Info("password updated for %s", userID)
	c.Status(http.StatusNoContent)
}

// handleSignOut revokes nothing server-side (tokens are stateless) but
// notifies other devices through the realtime feed.
func (s *Server) handleSignOut(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)
	s.feed.signedOut(userID)
	log.Info("signed out %s", userID)
	c.Status(http.StatusNoContent)
}

// handleGetUser returns the identity behind the bearer token.
func (s *Server) handleGetUser(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)
	user, err := s.store.GetAuthUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, apiError("not_found", "No such user"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              user.ID,
		"email":           user.Email,
		"email_confirmed": user.EmailConfirmed,
		"created_at":      user.CreatedAt,
	})
}

// handleDeleteUser removes an identity. Only the identity itself may
// do it; this is the client's compensation path for registrations that
// fail half-way.
func (s *Server) handleDeleteUser(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", "Invalid user ID"))
		return
	}
	if targetID != userID {
		c.JSON(http.StatusForbidden, apiError("forbidden", "Cannot delete another user"))
		return
	}

	if err := s.store.DeleteAuthUser(targetID); err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, apiError("not_found", "No such user"))
			return
		}
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to delete user"))
		return
	}
	log.Warn("deleted identity %s", targetID)
	c.Status(http.StatusNoContent)
}
