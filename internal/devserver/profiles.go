package devserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/devserver/store"
	"github.com/lfarias/mensageiro/internal/models"
)

func parseProfileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", "Invalid profile ID"))
		return uuid.Nil, false
	}
	return id, true
}

// handleInsertProfile creates the profile row for the authenticated
// identity. Username uniqueness is case-insensitive.
func (s *Server) handleInsertProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var profile models.User
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}
	if profile.ID != userID {
		c.JSON(http.StatusForbidden, apiError("forbidden", "Profile ID must match the authenticated user"))
		return
	}
	if profile.Username == "" {
		c.JSON(http.StatusBadRequest, apiError("bad_request", "Username required"))
		return
	}

	if err := s.store.InsertProfile(&profile); err != nil {
		if err == store.ErrUsernameTaken {
			c.JSON(http.StatusConflict, apiError("username_taken", "Username already taken"))
			return
		}
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to create profile"))
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// handleGetProfile fetches a profile row by id.
func (s *Server) handleGetProfile(c *gin.Context) {
	id, ok := parseProfileID(c)
	if !ok {
		return
	}
	profile, err := s.store.GetProfile(id)
	if err != nil {
		c.JSON(http.StatusNotFound, apiError("not_found", "Profile not found"))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handleGetProfileByUsername looks a profile up case-insensitively;
// the client's registration flow uses it for the uniqueness check.
func (s *Server) handleGetProfileByUsername(c *gin.Context) {
	profile, err := s.store.GetProfileByUsername(c.Param("username"))
	if err != nil {
		c.JSON(http.StatusNotFound, apiError("not_found", "Profile not found"))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handleUpdateProfile applies a partial update to the caller's own
// row and returns the stored result.
func (s *Server) handleUpdateProfile(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)
	id, ok := parseProfileID(c)
	if !ok {
		return
	}
	if id != userID {
		c.JSON(http.StatusForbidden, apiError("forbidden", "Cannot update another profile"))
		return
	}

	var upd models.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}

	profile, err := s.store.UpdateProfile(id, upd)
	if err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, apiError("not_found", "Profile not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to update profile"))
		return
	}
	c.JSON(http.StatusOK, profile)
}

type presenceRequest struct {
	OnlineStatus models.PresenceStatus `json:"online_status" binding:"required,oneof=online offline away"`
	LastSeen     time.Time             `json:"last_seen"`
}

// handleSetPresence records a presence transition and fans it out on
// the realtime feed.
func (s *Server) handleSetPresence(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)
	id, ok := parseProfileID(c)
	if !ok {
		return
	}
	if id != userID {
		c.JSON(http.StatusForbidden, apiError("forbidden", "Cannot update another profile"))
		return
	}

	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError("bad_request", err.Error()))
		return
	}
	if req.LastSeen.IsZero() {
		req.LastSeen = time.Now()
	}

	if err := s.store.SetPresence(id, req.OnlineStatus, req.LastSeen); err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, apiError("not_found", "Profile not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apiError("internal", "Failed to update presence"))
		return
	}

	s.feed.presence(id, req.OnlineStatus)
	c.Status(http.StatusNoContent)
}
