package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, first_name, last_name,
	is_admin, is_staff, is_superuser, date_joined, last_login`

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewUsersRepo(pool *pgxpool.Pool, obs DBObserver) *UsersRepo {
	return &UsersRepo{pool: pool, obs: observerOrNoop(obs)}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsAdmin,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.DateJoined,
		&u.LastLogin,
	)

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB("users.create", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (id, username, email, password_hash, first_name, last_name,
				is_admin, is_staff, is_superuser, date_joined)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING `+userColumns,
			uuid.NewString(), nu.Username, user.NormalizeEmail(nu.Email), nu.PasswordHash, nu.FirstName, nu.LastName,
			nu.IsAdmin, nu.IsStaff, nu.IsSuperuser, time.Now().UTC(),
		))
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, takenError(err)
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email",
		`SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id",
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg any) (user.User, error) {
	var u user.User
	found := true

	err := r.obs.ObserveDB(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, query, arg))
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})

	if err != nil {
		return user.User{}, err
	}
	if !found {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("users.touch_last_login", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// ListEmails returns every non-empty address, the notification audience.
func (r *UsersRepo) ListEmails(ctx context.Context) ([]string, error) {
	var out []string

	err := r.obs.ObserveDB("users.list_emails", func() error {
		rows, err := r.pool.Query(ctx, `SELECT email FROM users WHERE email <> '' ORDER BY date_joined, id`)
		if err != nil {
			return err
		}

		out, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the account; events and refresh tokens go with it through
// ON DELETE CASCADE.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("users.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
