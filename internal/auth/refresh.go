package auth

import (
	"errors"
	"time"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenMismatch = errors.New("refresh token hash mismatch")
)

// RefreshToken is the persisted half of a refresh JWT. Only the HMAC of the
// raw token is stored.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// CheckRotatable validates a stored token against the presented hash.
// Stores call it while holding the row lock.
func (t RefreshToken) CheckRotatable(presentedHash string, now time.Time) error {
	if t.RevokedAt != nil {
		return ErrRefreshTokenRevoked
	}
	if now.After(t.ExpiresAt) {
		return ErrRefreshTokenExpired
	}
	if t.TokenHash != presentedHash {
		return ErrRefreshTokenMismatch
	}
	return nil
}
