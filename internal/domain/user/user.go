package user

import (
	"errors"
	"strings"
	"time"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	IsAdmin      bool       `json:"is_admin"`
	IsStaff      bool       `json:"is_staff"`
	IsSuperuser  bool       `json:"-"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

// FullName mirrors the "first last" display name, empty when both parts are.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is the full name, falling back to the email address.
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}

// IsPrivileged reports whether the user may see and manage every event.
func (u User) IsPrivileged() bool {
	return u.IsAdmin || u.IsStaff || u.IsSuperuser
}

// NormalizeEmail lowercases and trims an address; emails are stored this way.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"omitempty,max=150"`
	LastName  string `json:"last_name" binding:"omitempty,max=150"`
	IsAdmin   bool   `json:"is_admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// NewUser is what a store needs to persist a new account.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsAdmin      bool
	IsStaff      bool
	IsSuperuser  bool
}

// FromRegisterRequest builds the account from a public registration.
// An admin registration is also staff.
func FromRegisterRequest(req RegisterRequest, passwordHash string) NewUser {
	email := NormalizeEmail(req.Email)

	return NewUser{
		Username:     email,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsAdmin:      req.IsAdmin,
		IsStaff:      req.IsAdmin,
	}
}
