package event

import "github.com/geocoder89/plansync/internal/domain/user"

// ScopeFor restricts a filter to the events the caller may see.
// A nil caller is anonymous and sees everything, as do privileged users;
// everyone else only sees the events they own.
func ScopeFor(caller *user.User, f ListEventsFilter) ListEventsFilter {
	f.OwnerID = nil

	if caller != nil && !caller.IsPrivileged() {
		id := caller.ID
		f.OwnerID = &id
	}

	return f
}

// CanManage reports whether the caller may modify or send reminders for e.
func CanManage(caller *user.User, e Event) bool {
	if caller == nil {
		return false
	}

	return caller.IsPrivileged() || e.CreatedBy == caller.ID
}

// Visible reports whether e belongs to the scoped set described by f.
// In-memory stores and tests use it to evaluate filters without SQL.
func Visible(e Event, f ListEventsFilter) bool {
	if f.OwnerID != nil && e.CreatedBy != *f.OwnerID {
		return false
	}
	if f.From != nil && e.EventDate.Before(*f.From) {
		return false
	}
	if f.Until != nil && e.EventDate.After(*f.Until) {
		return false
	}
	if f.Before != nil && !e.EventDate.Before(*f.Before) {
		return false
	}
	return true
}
