package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/feedback"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB times one logical store operation. Lookups that find nothing are
// recorded as "not_found" and refused token rotations as "rejected"; neither
// counts as an error.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"

	switch {
	case err == nil:
	case isMiss(err):
		status = "not_found"
	case isRejectedRotation(err):
		status = "rejected"
	default:
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}

	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func isMiss(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, event.ErrNotFound) ||
		errors.Is(err, feedback.ErrNotFound) ||
		errors.Is(err, user.ErrNotFound) ||
		errors.Is(err, auth.ErrRefreshTokenNotFound)
}

func isRejectedRotation(err error) bool {
	return errors.Is(err, auth.ErrRefreshTokenRevoked) ||
		errors.Is(err, auth.ErrRefreshTokenExpired) ||
		errors.Is(err, auth.ErrRefreshTokenMismatch)
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "23503":
			return "foreign_key_violation"
		case "23502":
			return "not_null_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
