package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
)

const dateLayout = "Monday, 02 January 2006 at 15:04 MST"

const (
	KindEventCreated  = "event_created"
	KindEventReminder = "event_reminder"
	KindWelcome       = "welcome"
)

// RecipientLister returns every address that should hear about events.
type RecipientLister interface {
	ListEmails(ctx context.Context) ([]string, error)
}

// Metrics receives one observation per attempted message.
type Metrics interface {
	ObserveNotification(kind, result string)
}

type DispatcherConfig struct {
	// From is the sender address; empty disables every dispatch.
	From     string
	Location *time.Location
	Logger   *slog.Logger
	Metrics  Metrics
}

type Dispatcher struct {
	sender     Sender
	recipients RecipientLister
	from       string
	loc        *time.Location
	log        *slog.Logger
	metrics    Metrics
}

func NewDispatcher(sender Sender, recipients RecipientLister, cfg DispatcherConfig) *Dispatcher {
	//defaults
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		sender:     sender,
		recipients: recipients,
		from:       cfg.From,
		loc:        cfg.Location,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// FormatEventDate renders t in the server timezone, e.g.
// "Saturday, 01 June 2024 at 09:30 UTC".
func (d *Dispatcher) FormatEventDate(t time.Time) string {
	return t.In(d.loc).Format(dateLayout)
}

func (d *Dispatcher) EventCreated(ctx context.Context, e event.Event, creator user.User) int {
	when := d.FormatEventDate(e.EventDate)

	subject := "New event scheduled: " + e.Title
	body := fmt.Sprintf(
		"A new event has been scheduled by %s.\n\n"+
			"Title: %s\n"+
			"When: %s\n"+
			"Description: %s\n\n"+
			"Log in to PlanSync for more details.",
		creator.DisplayName(), e.Title, when, describe(e),
	)

	return d.broadcast(ctx, KindEventCreated, subject, body, []string{creator.Email})
}

// EventReminder goes to everyone, including whoever triggered it.
func (d *Dispatcher) EventReminder(ctx context.Context, e event.Event, triggeredBy user.User) int {
	when := d.FormatEventDate(e.EventDate)

	subject := fmt.Sprintf("Reminder: %s on %s", e.Title, when)
	body := fmt.Sprintf(
		"%s sent a reminder for the upcoming event.\n\n"+
			"Title: %s\n"+
			"When: %s\n"+
			"Description: %s\n\n"+
			"Please confirm your availability in PlanSync.",
		triggeredBy.DisplayName(), e.Title, when, describe(e),
	)

	return d.broadcast(ctx, KindEventReminder, subject, body, nil)
}

func (d *Dispatcher) Welcome(ctx context.Context, u user.User) int {
	if !d.enabled(ctx, KindWelcome) || u.Email == "" {
		return 0
	}

	name := u.FirstName
	if name == "" {
		name = u.Email
	}

	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Thanks for registering with PlanSync. You're all set to log in and explore the dashboard.\n\n"+
			"If this wasn't you, please contact support immediately.",
		name,
	)

	return d.deliver(ctx, KindWelcome, "Welcome to PlanSync", body, []string{u.Email})
}

func (d *Dispatcher) broadcast(ctx context.Context, kind, subject, body string, exclude []string) int {
	if !d.enabled(ctx, kind) {
		return 0
	}

	all, err := d.recipients.ListEmails(ctx)
	if err != nil {
		d.log.WarnContext(ctx, "could not load notification recipients", "kind", kind, "err", err)
		d.observe(kind, "failed")
		return 0
	}

	recipients := filterRecipients(all, exclude)
	if len(recipients) == 0 {
		d.log.InfoContext(ctx, "no recipients available for event notification", "kind", kind)
		return 0
	}

	return d.deliver(ctx, kind, subject, body, recipients)
}

func (d *Dispatcher) enabled(ctx context.Context, kind string) bool {
	if d.from == "" || d.sender == nil {
		d.log.InfoContext(ctx, "email not configured; skipping notification dispatch", "kind", kind)
		d.observe(kind, "skipped")
		return false
	}
	return true
}

// deliver sends one message per recipient so addresses are not disclosed to
// each other. Failures are logged and skipped.
func (d *Dispatcher) deliver(ctx context.Context, kind, subject, body string, recipients []string) int {
	sent := 0

	for _, to := range recipients {
		err := d.sender.Send(ctx, Message{
			From:    d.from,
			To:      []string{to},
			Subject: subject,
			Body:    body,
		})

		if err != nil {
			d.log.WarnContext(ctx, "failed to send notification", "kind", kind, "to", to, "err", err)
			d.observe(kind, "failed")
			continue
		}

		d.observe(kind, "sent")
		sent++
	}

	d.log.InfoContext(ctx, "notification dispatched", "kind", kind, "sent", sent, "recipients", len(recipients))

	return sent
}

func (d *Dispatcher) observe(kind, result string) {
	if d.metrics != nil {
		d.metrics.ObserveNotification(kind, result)
	}
}

// filterRecipients drops blanks and excluded addresses, case-insensitively.
func filterRecipients(all, exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if e != "" {
			excluded[strings.ToLower(e)] = struct{}{}
		}
	}

	out := make([]string, 0, len(all))
	for _, addr := range all {
		if addr == "" {
			continue
		}
		if _, skip := excluded[strings.ToLower(addr)]; skip {
			continue
		}
		out = append(out, addr)
	}
	return out
}

func describe(e event.Event) string {
	if e.Description == "" {
		return "No description provided."
	}
	return e.Description
}
