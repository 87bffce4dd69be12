package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/plansync/internal/domain/feedback"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const feedbackColumns = `id, name, quote, rating, role, company, image, created_at`

type FeedbackRepo struct {
	pool *pgxpool.Pool
	obs  DBObserver
}

func NewFeedbackRepo(pool *pgxpool.Pool, obs DBObserver) *FeedbackRepo {
	return &FeedbackRepo{pool: pool, obs: observerOrNoop(obs)}
}

func scanFeedback(row pgx.Row) (feedback.Feedback, error) {
	var f feedback.Feedback
	err := row.Scan(&f.ID, &f.Name, &f.Quote, &f.Rating, &f.Role, &f.Company, &f.Image, &f.CreatedAt)
	return f, err
}

func (r *FeedbackRepo) Create(ctx context.Context, req feedback.CreateFeedbackRequest) (feedback.Feedback, error) {
	f := feedback.NewFromCreateRequest(req)

	err := r.obs.ObserveDB("feedback.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO feedback (`+feedbackColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			f.ID, f.Name, f.Quote, f.Rating, f.Role, f.Company, f.Image, f.CreatedAt)
		return err
	})

	if err != nil {
		return feedback.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}

	return f, nil
}

func (r *FeedbackRepo) List(ctx context.Context) ([]feedback.Feedback, error) {
	out := make([]feedback.Feedback, 0)

	err := r.obs.ObserveDB("feedback.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+feedbackColumns+` FROM feedback ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			f, err := scanFeedback(rows)
			if err != nil {
				return err
			}
			out = append(out, f)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *FeedbackRepo) GetByID(ctx context.Context, id string) (feedback.Feedback, error) {
	var f feedback.Feedback
	found := true

	err := r.obs.ObserveDB("feedback.get_by_id", func() error {
		var err error
		f, err = scanFeedback(r.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})

	if err != nil {
		return feedback.Feedback{}, err
	}
	if !found {
		return feedback.Feedback{}, feedback.ErrNotFound
	}
	return f, nil
}
