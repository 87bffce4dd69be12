package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Timestamps are kept at microsecond precision, the resolution Postgres
// stores, so both stores return identical values.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NewFromCreateRequest builds a fresh event owned by ownerID.
func NewFromCreateRequest(req CreateEventRequest, ownerID string) Event {
	now := stamp(time.Now())

	return Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventDate:   stamp(req.EventDate),
		CreatedBy:   ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply returns e with the update written over it. The editor becomes the
// owner and the owner display fields are cleared for the store to refill.
func (e Event) Apply(req UpdateEventRequest, editorID string, at time.Time) Event {
	req = req.Normalize()
	e.Title = req.Title
	e.Description = req.Description
	e.EventDate = stamp(req.EventDate)
	e.CreatedBy = editorID
	e.CreatedByName = ""
	e.CreatedByEmail = ""
	e.UpdatedAt = stamp(at)
	return e
}

// Normalize trims the title the way it is stored.
func (r UpdateEventRequest) Normalize() UpdateEventRequest {
	r.Title = strings.TrimSpace(r.Title)
	return r
}
