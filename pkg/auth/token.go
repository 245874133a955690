// Package auth mints and verifies the opaque signed session credential a
// client presents when opening (or re-authenticating) a chat connection.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired is returned when the credential has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when the credential is invalid for any
	// other reason (bad signature, malformed, missing subject or email).
	ErrInvalidToken = errors.New("invalid token")
)

// Profile is the verified identity carried inside a session credential.
// It is what the external OAuth exchange hands over after a login.
type Profile struct {
	Subject  string `json:"id" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Provider string `json:"provider"`
}

// Claims is the JWT payload for a session credential.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Mint signs a session credential for the given profile.
func Mint(p Profile, secret string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("empty signing secret")
	}
	if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Email) == "" {
		return "", ErrInvalidToken
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:    p.Email,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Provider: p.Provider,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify checks signature and expiry and returns the embedded profile.
func Verify(credential, secret string) (*Profile, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Email) == "" {
		return nil, ErrInvalidToken
	}

	return &Profile{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Avatar:   claims.Avatar,
		Provider: claims.Provider,
	}, nil
}
