package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/domain/feedback"
	"github.com/geocoder89/plansync/internal/utils"
	"github.com/gin-gonic/gin"
)

type FeedbackStore interface {
	Create(ctx context.Context, req feedback.CreateFeedbackRequest) (feedback.Feedback, error)
	List(ctx context.Context) ([]feedback.Feedback, error)
	GetByID(ctx context.Context, id string) (feedback.Feedback, error)
}

// FeedbackHandler serves public testimonials. There is no update or delete.
type FeedbackHandler struct {
	repo FeedbackStore
}

func NewFeedbackHandler(repo FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{repo: repo}
}

func (h *FeedbackHandler) ListFeedback(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	items, err := h.repo.List(cctx)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list feedback failed", "err", err)
		RespondInternal(ctx, "Could not list feedback")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *FeedbackHandler) CreateFeedback(ctx *gin.Context) {
	var req feedback.CreateFeedbackRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	created, err := h.repo.Create(cctx, req)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "create feedback failed", "err", err)
		RespondInternal(ctx, "Could not save feedback")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *FeedbackHandler) GetFeedback(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid feedback id", gin.H{"id": "must be a UUID"})
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	item, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, feedback.ErrNotFound) {
			RespondNotFound(ctx, "Feedback not found")
			return
		}
		slog.Default().ErrorContext(ctx.Request.Context(), "get feedback failed", "err", err)
		RespondInternal(ctx, "Could not fetch feedback")
		return
	}

	ctx.JSON(http.StatusOK, item)
}
