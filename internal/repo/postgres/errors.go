package postgres

import (
	"errors"

	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
)

// users.email and users.username carry Postgres' default unique constraint
// names.
const usernameConstraint = "users_username_key"

// takenError maps a users unique violation to the column it hit.
func takenError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == usernameConstraint {
		return user.ErrUsernameTaken
	}
	return user.ErrEmailTaken
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// DBObserver times a logical DB operation. observability.Prom implements it.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

func observerOrNoop(o DBObserver) DBObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
