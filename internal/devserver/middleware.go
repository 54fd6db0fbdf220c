package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// authRequired validates the bearer token and puts the user id in the
// request context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError("unauthorized", "Authorization header required"))
			return
		}

		userID, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError("unauthorized", "Invalid token"))
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// apiError is the error body every endpoint returns.
func apiError(code, message string) gin.H {
	return gin.H{"code": code, "message": message}
}
