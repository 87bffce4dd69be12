package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/domain/user"
)

var ErrSuperuserConfig = errors.New("superuser bootstrap not configured")

// SuperuserStore is the slice of the users repo the bootstrap needs.
type SuperuserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
}

type Hasher interface {
	Hash(plain string) (string, error)
}

// EnsureSuperuser creates the configured superuser once. Problems are logged
// and skipped unless cfg is strict, in which case they are returned.
func EnsureSuperuser(ctx context.Context, users SuperuserStore, hasher Hasher, cfg config.SuperuserConfig, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	skip := func(err error) error {
		if cfg.IsStrict() {
			return err
		}
		log.InfoContext(ctx, "skipping superuser creation", "reason", err.Error(), "hint", "set SUPERUSER_STRICT=true to fail instead")
		return nil
	}

	email := user.NormalizeEmail(cfg.Email)
	if email == "" {
		return skip(fmt.Errorf("%w: SUPERUSER_EMAIL is missing", ErrSuperuserConfig))
	}
	if cfg.Password == "" {
		return skip(fmt.Errorf("%w: SUPERUSER_PASSWORD is missing", ErrSuperuserConfig))
	}

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		log.InfoContext(ctx, "superuser already exists", "email", email)
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return skip(fmt.Errorf("look up superuser: %w", err))
	}

	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return skip(fmt.Errorf("hash superuser password: %w", err))
	}

	username := cfg.Username
	if username == "" {
		username = email
	}

	_, err = users.Create(ctx, user.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if err != nil {
		return skip(fmt.Errorf("create superuser: %w", err))
	}

	log.InfoContext(ctx, "superuser created", "email", email)
	return nil
}
