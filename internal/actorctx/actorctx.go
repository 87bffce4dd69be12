package actorctx

import (
	"context"

	"github.com/geocoder89/plansync/internal/domain/user"
)

type ctxKey string

const callerKey ctxKey = "caller"

// WithCaller attaches the authenticated user to ctx so code below the HTTP
// layer (loggers, notifications) can see who acted.
func WithCaller(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, callerKey, u)
}

func CallerFrom(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(callerKey).(*user.User)

	return u, ok && u != nil
}

func UserIDFrom(ctx context.Context) (string, bool) {
	u, ok := CallerFrom(ctx)
	if !ok || u.ID == "" {
		return "", false
	}

	return u.ID, true
}
