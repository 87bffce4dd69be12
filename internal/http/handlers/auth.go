package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/geocoder89/plansync/internal/notifications"
	"github.com/geocoder89/plansync/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName = "refresh_token"
	forgotPasswordMsg = "If an account with that email exists, a reset link will be sent shortly."
)

type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, row auth.RefreshToken) error
	Rotate(ctx context.Context, oldID, presentedHash string, next auth.RefreshToken) error
	Revoke(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
	CheckUnknown(plain string)
}

type AuthHandler struct {
	users         UserStore
	refreshStore  RefreshTokenStore
	jwt           *auth.Manager
	hasher        PasswordHasher
	welcome       notifications.WelcomeNotifier
	secureCookies bool
}

func NewAuthHandler(
	users UserStore,
	refreshStore RefreshTokenStore,
	jwtManager *auth.Manager,
	hasher PasswordHasher,
	welcome notifications.WelcomeNotifier,
	cfg config.Config,
) *AuthHandler {
	if welcome == nil {
		welcome = notifications.Noop{}
	}

	return &AuthHandler{
		users:         users,
		refreshStore:  refreshStore,
		jwt:           jwtManager,
		hasher:        hasher,
		welcome:       welcome,
		secureCookies: cfg.Env == "prod",
	}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.Create(cctx, user.FromRegisterRequest(req, hash))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) || errors.Is(err, user.ErrUsernameTaken) {
			RespondBadRequest(ctx, "Email is already in use.", BindDetails{
				Fields: []FieldError{{Field: "email", Rule: "unique", Message: "user with this email already exists"}},
			})
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "register failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.welcome.Welcome(context.WithoutCancel(ctx.Request.Context()), u)

	ctx.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			slog.Default().ErrorContext(ctx.Request.Context(), "login lookup failed", "err", err)
			RespondInternal(ctx, "Could not log in")
			return
		}
		h.hasher.CheckUnknown(req.Password)
		RespondUnAuthorized(ctx, "invalid_credentials", "Invalid email or password.")
		return
	}

	if err := h.hasher.Check(foundUser.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			slog.Default().WarnContext(ctx.Request.Context(), "stored password hash unusable", "user_id", foundUser.ID, "err", err)
		}
		RespondUnAuthorized(ctx, "invalid_credentials", "Invalid email or password.")
		return
	}

	now := time.Now().UTC()
	if err := h.users.TouchLastLogin(cctx, foundUser.ID, now); err != nil {
		slog.Default().WarnContext(ctx.Request.Context(), "could not record last login", "user_id", foundUser.ID, "err", err)
	} else {
		foundUser.LastLogin = &now
	}

	access, refresh, expiresAt, err := h.issueTokens(cctx, foundUser.ID, foundUser.Email)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "issue tokens failed", "err", err)
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, refresh, expiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"access":  access,
		"refresh": refresh,
		"user":    foundUser,
	})
}

func (h *AuthHandler) Profile(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, caller)
}

// ForgotPassword never reveals whether the email is registered. No reset
// mail is sent yet.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req user.ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"detail": forgotPasswordMsg})
}

// Refresh rotates the presented refresh token: the old one is revoked and a
// new pair is returned.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, ok := h.presentedRefreshToken(ctx)
	if !ok {
		return
	}

	if raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(claims.UserID, claims.Email)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	next := auth.RefreshToken{
		ID:        newJTI,
		UserID:    claims.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), next)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	case errors.Is(err, auth.ErrRefreshTokenNotFound),
		errors.Is(err, auth.ErrRefreshTokenRevoked),
		errors.Is(err, auth.ErrRefreshTokenMismatch):
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "refresh rotation failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	access, err := h.jwt.GenerateAccessToken(claims.UserID, claims.Email)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"access":  access,
		"refresh": newRaw,
	})
}

// Logout revokes the presented refresh token. It always answers 204.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, ok := h.presentedRefreshToken(ctx)
	if !ok {
		return
	}

	if raw != "" {
		if claims, err := h.jwt.VerifyRefreshToken(raw); err == nil {
			cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
			defer cancel()

			if err := h.refreshStore.Revoke(cctx, claims.JTI); err != nil {
				slog.Default().WarnContext(ctx.Request.Context(), "revoke refresh token failed", "err", err)
			}
		}
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Helper functions

func (h *AuthHandler) issueTokens(ctx context.Context, userID, email string) (access, refresh string, expiresAt time.Time, err error) {
	access, err = h.jwt.GenerateAccessToken(userID, email)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refresh, jti, expiresAt, err := h.jwt.GenerateRefreshToken(userID, email)
	if err != nil {
		return "", "", time.Time{}, err
	}

	err = h.refreshStore.Create(ctx, auth.RefreshToken{
		ID:        jti,
		UserID:    userID,
		TokenHash: h.jwt.HashRefreshToken(refresh),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", "", time.Time{}, err
	}

	return access, refresh, expiresAt, nil
}

// presentedRefreshToken prefers the JSON body and falls back to the cookie.
// It returns false after responding to a malformed body.
func (h *AuthHandler) presentedRefreshToken(ctx *gin.Context) (string, bool) {
	if ctx.Request.ContentLength != 0 {
		var req refreshRequest
		if !BindJSON(ctx, &req) {
			return "", false
		}
		if req.Refresh != "" {
			return req.Refresh, true
		}
	}

	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil {
		return "", true
	}

	return raw, true
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		refreshCookieName,
		raw,
		maxAge,
		"/auth",
		"",
		h.secureCookies,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		refreshCookieName,
		"",
		-1,
		"/auth",
		"",
		h.secureCookies,
		true,
	)
}
