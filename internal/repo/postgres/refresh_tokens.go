package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens
	(id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, obs DBObserver) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool, obs: observerOrNoop(obs)}
}

// pgxpool.Pool and pgx.Tx both satisfy it.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertRefreshToken(ctx context.Context, db execer, t auth.RefreshToken) error {
	_, err := db.Exec(ctx, insertRefreshTokenSQL,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.RevokedAt, t.ReplacedBy, t.CreatedAt)
	return err
}

func (r *RefreshTokensRepo) Create(ctx context.Context, t auth.RefreshToken) error {
	err := r.obs.ObserveDB("refresh_tokens.create", func() error {
		return insertRefreshToken(ctx, r.pool, t)
	})
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Rotate revokes oldID in favour of next. The old row is locked FOR UPDATE so
// concurrent refreshes presenting the same token serialize and only one wins.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next auth.RefreshToken) error {
	return r.obs.ObserveDB("refresh_tokens.rotate", func() error {
		return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			current, err := lockRefreshToken(ctx, tx, oldID)
			if err != nil {
				return err
			}

			if err := current.CheckRotatable(presentedHash, time.Now().UTC()); err != nil {
				return err
			}

			if _, err := tx.Exec(ctx,
				`UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by = $2 WHERE id = $1`,
				oldID, next.ID,
			); err != nil {
				return fmt.Errorf("revoke refresh token: %w", err)
			}

			return insertRefreshToken(ctx, tx, next)
		})
	})
}

func lockRefreshToken(ctx context.Context, tx pgx.Tx, id string) (auth.RefreshToken, error) {
	var t auth.RefreshToken

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens WHERE id = $1 FOR UPDATE`, id,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.ReplacedBy, &t.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return t, auth.ErrRefreshTokenNotFound
	}
	return t, err
}

// Revoke is idempotent; unknown or already revoked ids are not an error.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	return r.obs.ObserveDB("refresh_tokens.revoke", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
		return err
	})
}
