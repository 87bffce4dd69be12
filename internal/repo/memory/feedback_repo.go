package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/plansync/internal/domain/feedback"
)

type FeedbackRepo struct {
	s *Store
}

func NewFeedbackRepo(s *Store) *FeedbackRepo {
	return &FeedbackRepo{s: s}
}

func (r *FeedbackRepo) Create(_ context.Context, req feedback.CreateFeedbackRequest) (feedback.Feedback, error) {
	f := feedback.NewFromCreateRequest(req)

	r.s.mu.Lock()
	r.s.feedback[f.ID] = f
	r.s.mu.Unlock()

	return f, nil
}

func (r *FeedbackRepo) List(_ context.Context) ([]feedback.Feedback, error) {
	r.s.mu.RLock()
	out := make([]feedback.Feedback, 0, len(r.s.feedback))
	for _, f := range r.s.feedback {
		out = append(out, f)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *FeedbackRepo) GetByID(_ context.Context, id string) (feedback.Feedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.feedback[id]
	if !ok {
		return feedback.Feedback{}, feedback.ErrNotFound
	}
	return f, nil
}
