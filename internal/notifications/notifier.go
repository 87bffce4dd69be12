package notifications

import (
	"context"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
)

// Message is one outgoing plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender is an email transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EventNotifier announces event activity. Implementations are best-effort:
// they return how many messages went out and never fail the caller.
type EventNotifier interface {
	EventCreated(ctx context.Context, e event.Event, creator user.User) int
	EventReminder(ctx context.Context, e event.Event, triggeredBy user.User) int
}

type WelcomeNotifier interface {
	Welcome(ctx context.Context, u user.User) int
}

// Noop satisfies both notifier interfaces and sends nothing.
type Noop struct{}

func (Noop) EventCreated(context.Context, event.Event, user.User) int  { return 0 }
func (Noop) EventReminder(context.Context, event.Event, user.User) int { return 0 }
func (Noop) Welcome(context.Context, user.User) int                    { return 0 }
