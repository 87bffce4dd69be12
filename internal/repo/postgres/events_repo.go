package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// every read joins the owner so payloads carry created_by_name/email
const eventSelect = `SELECT e.id,
		e.title,
		e.description,
		e.event_date,
		e.created_by,
		TRIM(u.first_name || ' ' || u.last_name),
		u.email,
		e.created_at,
		e.updated_at
	FROM events e
	JOIN users u ON u.id = e.created_by`

type EventsRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

// constructor function

func NewEventsRepo(pool *pgxpool.Pool, obs DBObserver) *EventsRepo {
	return &EventsRepo{
		pool: pool,
		obs:  observerOrNoop(obs),
	}
}

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event

	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.EventDate,
		&e.CreatedBy,
		&e.CreatedByName,
		&e.CreatedByEmail,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	return e, err
}

func (r *EventsRepo) Create(ctx context.Context, req event.CreateEventRequest, ownerID string) (event.Event, error) {
	e := event.NewFromCreateRequest(req, ownerID)

	err := r.obs.ObserveDB("events.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO events (id, title, description, event_date, created_by, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, e.Title, e.Description, e.EventDate, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
		return err
	})

	if err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}

	return r.GetByID(ctx, e.ID)
}

// whereClause renders the filter as SQL conditions starting at $argsPosition.
func whereClause(f event.ListEventsFilter, argsPosition int) (string, []interface{}, int) {
	var conds []string
	var args []interface{}

	if f.OwnerID != nil {
		conds = append(conds, fmt.Sprintf("e.created_by = $%d", argsPosition))
		args = append(args, *f.OwnerID)
		argsPosition++
	}

	if f.From != nil {
		conds = append(conds, fmt.Sprintf("e.event_date >= $%d", argsPosition))
		args = append(args, *f.From)
		argsPosition++
	}

	if f.Until != nil {
		conds = append(conds, fmt.Sprintf("e.event_date <= $%d", argsPosition))
		args = append(args, *f.Until)
		argsPosition++
	}

	if f.Before != nil {
		conds = append(conds, fmt.Sprintf("e.event_date < $%d", argsPosition))
		args = append(args, *f.Before)
		argsPosition++
	}

	if len(conds) == 0 {
		return "", nil, argsPosition
	}

	return " WHERE " + strings.Join(conds, " AND "), args, argsPosition
}

func (r *EventsRepo) List(ctx context.Context, f event.ListEventsFilter) ([]event.Event, error) {
	where, args, argsPosition := whereClause(f, 1)

	query := eventSelect + where

	// stable ordering
	if f.Desc {
		query += " ORDER BY e.event_date DESC, e.id DESC"
	} else {
		query += " ORDER BY e.event_date ASC, e.id ASC"
	}

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argsPosition)
		args = append(args, f.Limit)
	}

	output := make([]event.Event, 0)

	err := r.obs.ObserveDB("events.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			output = append(output, e)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *EventsRepo) Count(ctx context.Context, f event.ListEventsFilter) (int, error) {
	where, args, _ := whereClause(f, 1)

	var total int

	err := r.obs.ObserveDB("events.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, args...).Scan(&total)
	})

	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event
	found := true

	err := r.obs.ObserveDB("events.get_by_id", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})

	if err != nil {
		return event.Event{}, err
	}
	if !found {
		return event.Event{}, event.ErrNotFound
	}

	return e, nil
}

// Update overwrites the editable fields and records ownerID as the owner.
func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest, ownerID string) (event.Event, error) {
	req = req.Normalize()
	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("events.update", func() error {
		var err error
		tag, err = r.pool.Exec(
			ctx,
			`UPDATE events
			SET title = $2,
					description = $3,
					event_date = $4,
					created_by = $5,
					updated_at = $6
		WHERE id = $1`,
			id,
			req.Title,
			req.Description,
			req.EventDate.UTC(),
			ownerID,
			time.Now().UTC(),
		)
		return err
	})

	if err != nil {
		return event.Event{}, err
	}

	// if there are no rows matching the id
	if tag.RowsAffected() == 0 {
		return event.Event{}, event.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("events.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		DELETE from events WHERE id = $1
	`, id)
		return err
	})

	if err != nil {

		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return event.ErrNotFound
	}

	return nil
}
