package actorctx

import (
	"context"
	"testing"

	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/stretchr/testify/assert"
)

func TestCallerRoundTrip(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	assert.False(t, ok)

	ctx := WithCaller(context.Background(), &user.User{ID: "u1"})

	id, ok := UserIDFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	_, ok = UserIDFrom(WithCaller(context.Background(), nil))
	assert.False(t, ok)
}
