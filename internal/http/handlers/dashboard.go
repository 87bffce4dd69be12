package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/dashboard"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type StatsProvider interface {
	Stats(ctx context.Context, caller *user.User) (dashboard.Stats, error)
}

type DashboardHandler struct {
	stats StatsProvider
}

func NewDashboardHandler(stats StatsProvider) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// GetDashboard returns the caller's statistics with an ETag for revalidation.
func (h *DashboardHandler) GetDashboard(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	stats, err := h.stats.Stats(cctx, caller)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "dashboard stats failed", "err", err)
		RespondInternal(ctx, "Could not load dashboard")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, stats)
}
