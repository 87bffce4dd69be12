package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	issuer = "plansync"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
)

// Claims identify the user only; role flags are read from the store on
// every request so privilege changes apply immediately.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 access and refresh tokens.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

func (m *Manager) GenerateAccessToken(userID, email string) (string, error) {
	raw, _, _, err := m.issue(userID, email, TokenTypeAccess, m.accessTTL)
	return raw, err
}

// GenerateRefreshToken returns the signed token with its jti and expiry so
// the caller can persist a matching row.
func (m *Manager) GenerateRefreshToken(userID, email string) (raw, jti string, expiresAt time.Time, err error) {
	return m.issue(userID, email, TokenTypeRefresh, m.refreshTTL)
}

func (m *Manager) issue(userID, email, typ string, ttl time.Duration) (string, string, time.Time, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()
	exp := now.Add(ttl)

	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: typ,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("signing %s token: %w", typ, err)
	}

	return raw, jti, exp, nil
}

// ParseAndValidate checks signature, issuer and expiry. Every failure wraps
// ErrInvalidToken.
func (m *Manager) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	_, err := m.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TokenTypeAccess)
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.verify(tokenStr, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	if claims.JTI == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}

	return claims, nil
}

func (m *Manager) verify(tokenStr, typ string) (*Claims, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != typ {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}

// HashRefreshToken is a keyed HMAC of the raw token. Only the hash is stored.
func (m *Manager) HashRefreshToken(raw string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
