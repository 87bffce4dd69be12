package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/geocoder89/plansync/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUser(t *testing.T, repo *memory.UsersRepo, email string) user.User {
	t.Helper()
	u, err := repo.Create(context.Background(), user.NewUser{Username: email, Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func mustEvent(t *testing.T, repo *memory.EventsRepo, owner user.User, title string, at time.Time) event.Event {
	t.Helper()
	e, err := repo.Create(context.Background(), event.CreateEventRequest{Title: title, EventDate: at}, owner.ID)
	require.NoError(t, err)
	return e
}

func TestUsersCreateRejectsDuplicateEmail(t *testing.T) {
	s := memory.NewStore()
	users := memory.NewUsersRepo(s)

	mustUser(t, users, "a@example.com")

	_, err := users.Create(context.Background(), user.NewUser{Username: "other", Email: "A@Example.com"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestUsersCreateRejectsDuplicateUsername(t *testing.T) {
	users := memory.NewUsersRepo(memory.NewStore())

	mustUser(t, users, "a@example.com")

	_, err := users.Create(context.Background(), user.NewUser{Username: "a@example.com", Email: "root@example.com"})
	assert.ErrorIs(t, err, user.ErrUsernameTaken)
	assert.NotErrorIs(t, err, user.ErrEmailTaken)
}

func TestScopedListing(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	users := memory.NewUsersRepo(s)
	events := memory.NewEventsRepo(s)

	a := mustUser(t, users, "a@example.com")
	b := mustUser(t, users, "b@example.com")
	admin := mustUser(t, users, "admin@example.com")
	admin.IsAdmin = true

	mustEvent(t, events, a, "June", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	mustEvent(t, events, a, "January", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	got, err := events.List(ctx, event.ScopeFor(&b, event.ListEventsFilter{}))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = events.List(ctx, event.ScopeFor(&a, event.ListEventsFilter{}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "January", got[0].Title, "default order is ascending event_date")
	assert.Equal(t, "a@example.com", got[0].CreatedByEmail)

	got, err = events.List(ctx, event.ScopeFor(&admin, event.ListEventsFilter{}))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = events.List(ctx, event.ListEventsFilter{Desc: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "June", got[0].Title)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	users := memory.NewUsersRepo(s)
	events := memory.NewEventsRepo(s)
	tokens := memory.NewRefreshTokensRepo(s)

	a := mustUser(t, users, "a@example.com")
	b := mustUser(t, users, "b@example.com")

	mustEvent(t, events, a, "A1", time.Now())
	mustEvent(t, events, a, "A2", time.Now())
	kept := mustEvent(t, events, b, "B1", time.Now())
	require.NoError(t, tokens.Create(ctx, auth.RefreshToken{ID: "t1", UserID: a.ID, ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, users.Delete(ctx, a.ID))

	n, err := events.Count(ctx, event.ListEventsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = events.GetByID(ctx, kept.ID)
	assert.NoError(t, err)

	err = tokens.Rotate(ctx, "t1", "", auth.RefreshToken{ID: "t2"})
	assert.ErrorIs(t, err, auth.ErrRefreshTokenNotFound)

	assert.ErrorIs(t, users.Delete(ctx, a.ID), user.ErrNotFound)
}

func TestUpdateReassignsOwner(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	users := memory.NewUsersRepo(s)
	events := memory.NewEventsRepo(s)

	a := mustUser(t, users, "a@example.com")
	admin := mustUser(t, users, "admin@example.com")

	e := mustEvent(t, events, a, "Standup", time.Now())

	updated, err := events.Update(ctx, e.ID, event.UpdateEventRequest{Title: "Standup v2", EventDate: e.EventDate}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, updated.CreatedBy)
	assert.Equal(t, "admin@example.com", updated.CreatedByEmail)
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	tokens := memory.NewRefreshTokensRepo(memory.NewStore())

	require.NoError(t, tokens.Create(ctx, auth.RefreshToken{ID: "t1", TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}))

	assert.ErrorIs(t, tokens.Rotate(ctx, "t1", "wrong", auth.RefreshToken{ID: "t2"}), auth.ErrRefreshTokenMismatch)
	require.NoError(t, tokens.Rotate(ctx, "t1", "h1", auth.RefreshToken{ID: "t2", TokenHash: "h2", ExpiresAt: time.Now().Add(time.Hour)}))

	// reuse of the rotated token is rejected
	assert.ErrorIs(t, tokens.Rotate(ctx, "t1", "h1", auth.RefreshToken{ID: "t3"}), auth.ErrRefreshTokenRevoked)

	require.NoError(t, tokens.Revoke(ctx, "t2"))
	require.NoError(t, tokens.Revoke(ctx, "t2"))
	assert.ErrorIs(t, tokens.Rotate(ctx, "t2", "h2", auth.RefreshToken{ID: "t4"}), auth.ErrRefreshTokenRevoked)

	require.NoError(t, tokens.Create(ctx, auth.RefreshToken{ID: "old", TokenHash: "h", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.ErrorIs(t, tokens.Rotate(ctx, "old", "h", auth.RefreshToken{ID: "t5"}), auth.ErrRefreshTokenExpired)
}
