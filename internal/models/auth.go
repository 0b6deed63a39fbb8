package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignInRequest holds credentials for password sign-in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the payload for account creation.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	AdminCode   string `json:"admin_code,omitempty"`
}

// AuthSession is a live session issued by the auth backend.
type AuthSession struct {
	ID          string     `db:"id" json:"-"`
	UserID      string     `db:"user_id" json:"user_id"`
	Email       string     `db:"email" json:"email"`
	AccessToken string     `db:"-" json:"access_token"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt   *time.Time `db:"revoked_at" json:"-"`
}

// Active reports whether the session can still be used at the given instant.
func (s *AuthSession) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AuthResponse is returned by sign-in and sign-up.
type AuthResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity    *Identity `json:"identity"`
}

// SessionClaims is the JWT payload for access tokens.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}
