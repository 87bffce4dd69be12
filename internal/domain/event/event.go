package event

import (
	"errors"
	"time"
)

type Event struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	EventDate      time.Time `json:"event_date"`
	CreatedBy      string    `json:"created_by"`
	CreatedByName  string    `json:"created_by_name"`
	CreatedByEmail string    `json:"created_by_email"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OwnerDisplayName is the owner's full name, falling back to their email.
func (e Event) OwnerDisplayName() string {
	if e.CreatedByName != "" {
		return e.CreatedByName
	}
	return e.CreatedByEmail
}

// with pointers if optional, it will be nil
type ListEventsFilter struct {
	OwnerID *string
	From    *time.Time // event_date >= From
	Until   *time.Time // event_date <= Until
	Before  *time.Time // event_date < Before
	Limit   int        // 0 means no limit
	Desc    bool       // order by event_date descending
}

var (
	ErrNotFound  = errors.New("event not found")
	ErrForbidden = errors.New("not allowed to manage this event")
)

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,notblank,max=255"`
	Description string    `json:"description" binding:"omitempty,max=5000"`
	EventDate   time.Time `json:"event_date" binding:"required"`
}

// a full update payload, PATCH goes through PatchEventRequest.
type UpdateEventRequest struct {
	Title       string    `json:"title" binding:"required,notblank,max=255"`
	Description string    `json:"description" binding:"omitempty,max=5000"`
	EventDate   time.Time `json:"event_date" binding:"required"`
}

type PatchEventRequest struct {
	Title       *string    `json:"title" binding:"omitempty,notblank,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	EventDate   *time.Time `json:"event_date"`
}

// Merge overlays the provided fields on the current event.
func (p PatchEventRequest) Merge(current Event) UpdateEventRequest {
	out := UpdateEventRequest{
		Title:       current.Title,
		Description: current.Description,
		EventDate:   current.EventDate,
	}

	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.EventDate != nil {
		out.EventDate = *p.EventDate
	}

	return out
}
