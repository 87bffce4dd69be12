package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/google/uuid"
)

type UsersRepo struct {
	s *Store
}

func NewUsersRepo(s *Store) *UsersRepo {
	return &UsersRepo{s: s}
}

func (r *UsersRepo) Create(_ context.Context, nu user.NewUser) (user.User, error) {
	email := user.NormalizeEmail(nu.Email)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		switch {
		case existing.Email == email:
			return user.User{}, user.ErrEmailTaken
		case existing.Username == nu.Username:
			return user.User{}, user.ErrUsernameTaken
		}
	}

	u := user.User{
		ID:           uuid.NewString(),
		Username:     nu.Username,
		Email:        email,
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		IsAdmin:      nu.IsAdmin,
		IsStaff:      nu.IsStaff,
		IsSuperuser:  nu.IsSuperuser,
		DateJoined:   time.Now().UTC(),
	}
	r.s.users[u.ID] = u

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	email = user.NormalizeEmail(email)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	at = at.UTC()
	u.LastLogin = &at
	r.s.users[id] = u
	return nil
}

func (r *UsersRepo) ListEmails(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	all := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].DateJoined.Equal(all[j].DateJoined) {
			return all[i].ID < all[j].ID
		}
		return all[i].DateJoined.Before(all[j].DateJoined)
	})

	out := make([]string, 0, len(all))
	for _, u := range all {
		if u.Email != "" {
			out = append(out, u.Email)
		}
	}
	return out, nil
}

// Delete removes the user and cascades to their events and refresh tokens.
func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return user.ErrNotFound
	}

	delete(r.s.users, id)

	for eid, e := range r.s.events {
		if e.CreatedBy == id {
			delete(r.s.events, eid)
		}
	}
	for tid, t := range r.s.refresh {
		if t.UserID == id {
			delete(r.s.refresh, tid)
		}
	}

	return nil
}
