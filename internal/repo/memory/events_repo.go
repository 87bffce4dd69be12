package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
)

type EventsRepo struct {
	s *Store
}

func NewEventsRepo(s *Store) *EventsRepo {
	return &EventsRepo{s: s}
}

func (r *EventsRepo) Create(_ context.Context, req event.CreateEventRequest, ownerID string) (event.Event, error) {
	e := event.NewFromCreateRequest(req, ownerID)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// mirrors the created_by foreign key
	if _, ok := r.s.users[ownerID]; !ok {
		return event.Event{}, user.ErrNotFound
	}

	r.s.events[e.ID] = e

	return r.s.withOwner(e), nil
}

func (r *EventsRepo) GetByID(_ context.Context, id string) (event.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return r.s.withOwner(e), nil
}

func (r *EventsRepo) List(_ context.Context, f event.ListEventsFilter) ([]event.Event, error) {
	r.s.mu.RLock()
	out := make([]event.Event, 0, len(r.s.events))
	for _, e := range r.s.events {
		if event.Visible(e, f) {
			out = append(out, r.s.withOwner(e))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.Desc {
			a, b = b, a
		}
		if a.EventDate.Equal(b.EventDate) {
			return a.ID < b.ID
		}
		return a.EventDate.Before(b.EventDate)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}

	return out, nil
}

func (r *EventsRepo) Count(_ context.Context, f event.ListEventsFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.events {
		if event.Visible(e, f) {
			n++
		}
	}
	return n, nil
}

func (r *EventsRepo) Update(_ context.Context, id string, req event.UpdateEventRequest, ownerID string) (event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	if _, ok := r.s.users[ownerID]; !ok {
		return event.Event{}, user.ErrNotFound
	}

	e = e.Apply(req, ownerID, time.Now())
	r.s.events[id] = e

	return r.s.withOwner(e), nil
}

func (r *EventsRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[id]; !ok {
		return event.ErrNotFound
	}
	delete(r.s.events, id)
	return nil
}
