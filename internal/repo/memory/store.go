package memory

import (
	"sync"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/feedback"
	"github.com/geocoder89/plansync/internal/domain/user"
)

// Store is an in-process replacement for the Postgres schema. The repos
// built on it share one lock so cross-table rules (owner joins, cascading
// deletes) hold the same way the database enforces them.
type Store struct {
	mu       sync.RWMutex
	users    map[string]user.User
	events   map[string]event.Event // {"key": "value"}
	feedback map[string]feedback.Feedback
	refresh  map[string]auth.RefreshToken
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]user.User),
		events:   make(map[string]event.Event),
		feedback: make(map[string]feedback.Feedback),
		refresh:  make(map[string]auth.RefreshToken),
	}
}

// withOwner fills the joined owner columns. Caller holds mu.
func (s *Store) withOwner(e event.Event) event.Event {
	if u, ok := s.users[e.CreatedBy]; ok {
		e.CreatedByName = u.FullName()
		e.CreatedByEmail = u.Email
	}
	return e
}
