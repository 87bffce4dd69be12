package event_test

import (
	"testing"
	"time"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeFor(t *testing.T) {
	owner := &user.User{ID: "owner"}
	staff := &user.User{ID: "staff", IsStaff: true}
	admin := &user.User{ID: "admin", IsAdmin: true}
	super := &user.User{ID: "root", IsSuperuser: true}

	assert.Nil(t, event.ScopeFor(nil, event.ListEventsFilter{}).OwnerID, "anonymous sees all")
	assert.Nil(t, event.ScopeFor(staff, event.ListEventsFilter{}).OwnerID)
	assert.Nil(t, event.ScopeFor(admin, event.ListEventsFilter{}).OwnerID)
	assert.Nil(t, event.ScopeFor(super, event.ListEventsFilter{}).OwnerID)

	scoped := event.ScopeFor(owner, event.ListEventsFilter{Limit: 5})
	require.NotNil(t, scoped.OwnerID)
	assert.Equal(t, "owner", *scoped.OwnerID)
	assert.Equal(t, 5, scoped.Limit)

	// a caller can never widen the scope by pre-setting an owner
	other := "someone-else"
	scoped = event.ScopeFor(owner, event.ListEventsFilter{OwnerID: &other})
	assert.Equal(t, "owner", *scoped.OwnerID)
}

func TestCanManage(t *testing.T) {
	e := event.Event{ID: "e1", CreatedBy: "owner"}

	assert.False(t, event.CanManage(nil, e))
	assert.True(t, event.CanManage(&user.User{ID: "owner"}, e))
	assert.False(t, event.CanManage(&user.User{ID: "other"}, e))
	assert.True(t, event.CanManage(&user.User{ID: "other", IsStaff: true}, e))
	assert.True(t, event.CanManage(&user.User{ID: "other", IsAdmin: true}, e))
}

func TestVisibleBounds(t *testing.T) {
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	from := now.Add(-7 * 24 * time.Hour)

	f := event.ListEventsFilter{From: &from, Until: &now}

	assert.True(t, event.Visible(event.Event{EventDate: from}, f), "lower bound is inclusive")
	assert.True(t, event.Visible(event.Event{EventDate: now}, f), "upper bound is inclusive")
	assert.False(t, event.Visible(event.Event{EventDate: now.Add(time.Second)}, f))

	before := event.ListEventsFilter{Before: &now}
	assert.False(t, event.Visible(event.Event{EventDate: now}, before), "Before is exclusive")
}

func TestPatchMerge(t *testing.T) {
	current := event.Event{Title: "Old", Description: "keep", EventDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	title := "New"

	out := event.PatchEventRequest{Title: &title}.Merge(current)

	assert.Equal(t, "New", out.Title)
	assert.Equal(t, "keep", out.Description)
	assert.Equal(t, current.EventDate, out.EventDate)
}
