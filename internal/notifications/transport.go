package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultSendTimeout = 10 * time.Second

var errNoRecipients = errors.New("notifications: message has no recipients")

// LogSender records messages in the log instead of delivering them. It is
// the transport for EMAIL_PROVIDER=log.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With("transport", "log")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "notification.email",
		slog.String("from", msg.From),
		slog.String("to", strings.Join(msg.To, ",")),
		slog.String("subject", msg.Subject),
		slog.Int("body_bytes", len(msg.Body)),
	)
	s.log.DebugContext(ctx, "notification.email.body", slog.String("body", msg.Body))

	return nil
}

// TimeoutSender gives each Send its own deadline, detached from how much of
// the caller's budget is left.
type TimeoutSender struct {
	next    Sender
	timeout time.Duration
}

func NewTimeoutSender(next Sender, timeout time.Duration) *TimeoutSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &TimeoutSender{next: next, timeout: timeout}
}

func (s *TimeoutSender) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.next.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	return nil
}
