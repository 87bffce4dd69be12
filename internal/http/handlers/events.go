package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/domain/event"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/geocoder89/plansync/internal/http/middlewares"
	"github.com/geocoder89/plansync/internal/notifications"
	"github.com/geocoder89/plansync/internal/utils"
	"github.com/gin-gonic/gin"
)

const storeTimeout = 3 * time.Second

type EventsStore interface {
	Create(ctx context.Context, req event.CreateEventRequest, ownerID string) (event.Event, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	List(ctx context.Context, f event.ListEventsFilter) ([]event.Event, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest, ownerID string) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsHandler struct {
	repo     EventsStore
	notifier notifications.EventNotifier
}

func NewEventsHandler(repo EventsStore, notifier notifications.EventNotifier) *EventsHandler {
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	return &EventsHandler{repo: repo, notifier: notifier}
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	filter := event.ScopeFor(middlewares.CallerFromContext(ctx), event.ListEventsFilter{})

	events, err := h.repo.List(cctx, filter)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list events failed", "err", err)
		RespondInternal(ctx, "Could not list events")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": events,
		"count": len(events),
	})
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	created, err := h.repo.Create(cctx, req, caller.ID)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "create event failed", "err", err)
		RespondInternal(ctx, "Could not create event")
		return
	}

	// best effort; the event is already stored
	h.notifier.EventCreated(context.WithoutCancel(ctx.Request.Context()), created, *caller)

	ctx.JSON(http.StatusCreated, created)
}

func (h *EventsHandler) GetEventById(ctx *gin.Context) {
	id, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	e, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

// UpdateEvent replaces every editable field (PUT).
func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	id, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	var req event.UpdateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if _, err := h.scopedGet(cctx, caller, id); err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	h.save(ctx, cctx, caller, id, req)
}

// PatchEvent updates only the fields present in the body.
func (h *EventsHandler) PatchEvent(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	id, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	var req event.PatchEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	current, err := h.scopedGet(cctx, caller, id)
	if err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	h.save(ctx, cctx, caller, id, req.Merge(current))
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	id, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if _, err := h.scopedGet(cctx, caller, id); err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// RemindEvent emails every user about the event. Unlike the mutations, a
// caller who can see but not manage the event gets 403 rather than 404.
func (h *EventsHandler) RemindEvent(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	id, ok := eventIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	e, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	if !event.CanManage(caller, e) {
		h.respondLookupError(ctx, event.ErrForbidden)
		return
	}

	sent := h.notifier.EventReminder(context.WithoutCancel(ctx.Request.Context()), e, *caller)

	ctx.JSON(http.StatusOK, gin.H{
		"detail":     fmt.Sprintf("Reminder sent to %d recipients.", sent),
		"recipients": sent,
	})
}

// scopedGet loads an event through the caller's visibility scope, so events
// owned by someone else look missing to non-privileged callers.
func (h *EventsHandler) scopedGet(ctx context.Context, caller *user.User, id string) (event.Event, error) {
	e, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return event.Event{}, err
	}

	if !event.Visible(e, event.ScopeFor(caller, event.ListEventsFilter{})) {
		return event.Event{}, event.ErrNotFound
	}

	return e, nil
}

func (h *EventsHandler) save(ctx *gin.Context, cctx context.Context, caller *user.User, id string, req event.UpdateEventRequest) {
	// saving records the editor as the new owner
	updated, err := h.repo.Update(cctx, id, req, caller.ID)
	if err != nil {
		h.respondLookupError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *EventsHandler) respondLookupError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")
	case errors.Is(err, event.ErrForbidden):
		RespondForbidden(ctx, "Not authorized to send reminders for this event.")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "event store error", "err", err)
		RespondInternal(ctx, "Could not process event")
	}
}

// requireCaller guards handlers that must never run anonymously, even if a
// route is mounted without RequireAuth.
func requireCaller(ctx *gin.Context) (*user.User, bool) {
	caller := middlewares.CallerFromContext(ctx)
	if caller == nil {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication credentials were not provided.")
		return nil, false
	}
	return caller, true
}

func eventIDParam(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid event id", gin.H{"id": "must be a UUID"})
		return "", false
	}

	return id, true
}
