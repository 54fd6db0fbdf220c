package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/lfarias/mensageiro/internal/devserver/store"
)

var errInvalidToken = errors.New("invalid token")

// tokenClaims is what the devserver puts in an access token.
type tokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// issueToken mints an HS256 access token for an auth user.
func (s *Server) issueToken(u *store.AuthUser) (string, time.Time, error) {
	expiry := time.Now().Add(s.cfg.TokenTTL)
	claims := &tokenClaims{
		UserID: u.ID.String(),
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtKey)
	return signed, expiry, err
}

// parseToken validates an access token and returns the user id.
func (s *Server) parseToken(raw string) (uuid.UUID, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtKey, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errInvalidToken
	}
	return uuid.Parse(claims.UserID)
}
