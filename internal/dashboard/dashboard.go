// Package dashboard computes the read-only statistics shown on the home
// screen. All figures are derived from the caller's scoped set of events.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
)

const (
	recentLimit  = 5
	monthBuckets = 6
	labelLayout  = "Jan 2006"
)

type EventReader interface {
	Count(ctx context.Context, f event.ListEventsFilter) (int, error)
	List(ctx context.Context, f event.ListEventsFilter) ([]event.Event, error)
}

type Summary struct {
	TotalEvents    int `json:"total_events"`
	UpcomingEvents int `json:"upcoming_events"`
	PastWeekEvents int `json:"past_week_events"`
}

type RecentEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventDate time.Time `json:"event_date"`
	CreatedBy string    `json:"created_by"`
}

type MonthBucket struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

type Utilization struct {
	Planned   int `json:"planned"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type Stats struct {
	Summary          Summary       `json:"summary"`
	RecentEvents     []RecentEvent `json:"recent_events"`
	MonthlyBreakdown []MonthBucket `json:"monthly_breakdown"`
	Utilization      Utilization   `json:"utilization"`
}

type Aggregator struct {
	events EventReader
	// Now is the clock; tests pin it.
	Now func() time.Time
}

func NewAggregator(events EventReader) *Aggregator {
	return &Aggregator{
		events: events,
		Now:    time.Now,
	}
}

func (a *Aggregator) Stats(ctx context.Context, caller *user.User) (Stats, error) {
	now := a.Now().UTC()
	scope := event.ScopeFor(caller, event.ListEventsFilter{})

	total, err := a.events.Count(ctx, scope)
	if err != nil {
		return Stats{}, fmt.Errorf("count events: %w", err)
	}

	upcomingFilter := scope
	upcomingFilter.From = &now
	upcoming, err := a.events.Count(ctx, upcomingFilter)
	if err != nil {
		return Stats{}, fmt.Errorf("count upcoming events: %w", err)
	}

	weekAgo := now.AddDate(0, 0, -7)
	pastWeekFilter := scope
	pastWeekFilter.From = &weekAgo
	pastWeekFilter.Until = &now
	pastWeek, err := a.events.Count(ctx, pastWeekFilter)
	if err != nil {
		return Stats{}, fmt.Errorf("count past week events: %w", err)
	}

	recentFilter := scope
	recentFilter.Desc = true
	recentFilter.Limit = recentLimit
	latest, err := a.events.List(ctx, recentFilter)
	if err != nil {
		return Stats{}, fmt.Errorf("list recent events: %w", err)
	}

	recent := make([]RecentEvent, 0, len(latest))
	for _, e := range latest {
		recent = append(recent, RecentEvent{
			ID:        e.ID,
			Title:     e.Title,
			EventDate: e.EventDate,
			CreatedBy: e.OwnerDisplayName(),
		})
	}

	monthly, err := a.monthlyBreakdown(ctx, scope, now)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Summary: Summary{
			TotalEvents:    total,
			UpcomingEvents: upcoming,
			PastWeekEvents: pastWeek,
		},
		RecentEvents:     recent,
		MonthlyBreakdown: monthly,
		Utilization:      utilization(total, pastWeek),
	}, nil
}

// monthlyBreakdown walks back in 30-day steps and counts each step's calendar
// month. Two steps can land in the same month, which yields a repeated label.
func (a *Aggregator) monthlyBreakdown(ctx context.Context, scope event.ListEventsFilter, now time.Time) ([]MonthBucket, error) {
	out := make([]MonthBucket, monthBuckets)

	for k := 0; k < monthBuckets; k++ {
		start := firstOfMonth(now.AddDate(0, 0, -30*k))
		next := firstOfMonth(start.AddDate(0, 0, 32))

		f := scope
		f.From = &start
		f.Before = &next

		n, err := a.events.Count(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("count events for %s: %w", start.Format(labelLayout), err)
		}

		// oldest first
		out[monthBuckets-1-k] = MonthBucket{Label: start.Format(labelLayout), Value: n}
	}

	return out, nil
}

func utilization(total, pastWeek int) Utilization {
	planned := min(total*5, 100)

	return Utilization{
		Planned:   planned,
		Completed: min(pastWeek*10, 100),
		Pending:   max(100-planned, 0),
	}
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
