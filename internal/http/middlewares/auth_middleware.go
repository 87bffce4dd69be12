package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/plansync/internal/actorctx"
	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// UserLookup loads the account behind a token; flags come from the store,
// never from claims.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserLookup
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

var errNoCredentials = errors.New("no credentials")

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := m.authenticate(c)
		if err != nil {
			m.reject(c, err)
			return
		}

		SetCaller(c, u)
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through. A token that is present but
// invalid is still rejected.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := m.authenticate(c)
		if errors.Is(err, errNoCredentials) {
			c.Next()
			return
		}
		if err != nil {
			m.reject(c, err)
			return
		}

		SetCaller(c, u)
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) (*user.User, error) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return nil, errNoCredentials
	}

	scheme, raw, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, auth.ErrInvalidToken
	}

	claims, err := m.jwt.VerifyAccessToken(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}

	u, err := m.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}

	return &u, nil
}

func (m *AuthMiddleware) reject(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNoCredentials):
		abortError(c, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidTokenType):
		abortError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired access token")
	default:
		abortError(c, http.StatusInternalServerError, "internal_error", "Could not authenticate request")
	}
}

// SetCaller attaches an authenticated user to the gin and request contexts.
func SetCaller(c *gin.Context, u *user.User) {
	c.Set(ctxCallerKey, u)
	c.Request = c.Request.WithContext(actorctx.WithCaller(c.Request.Context(), u))
}

// Optional helpers so handlers don’t need to know the magic keys.

// CallerFromContext returns the authenticated user, or nil for anonymous
// requests.
func CallerFromContext(c *gin.Context) *user.User {
	v, ok := c.Get(ctxCallerKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user.User)
	return u
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u := CallerFromContext(c)
	if u == nil || u.ID == "" {
		return "", false
	}
	return u.ID, true
}
