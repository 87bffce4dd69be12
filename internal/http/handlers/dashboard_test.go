package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/plansync/internal/dashboard"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/geocoder89/plansync/internal/http/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	stats dashboard.Stats
	err   error
	seen  *user.User
}

func (f *fakeStats) Stats(_ context.Context, caller *user.User) (dashboard.Stats, error) {
	f.seen = caller
	return f.stats, f.err
}

func TestDashboardHandler(t *testing.T) {
	provider := &fakeStats{stats: dashboard.Stats{Summary: dashboard.Summary{TotalEvents: 3}}}
	h := handlers.NewDashboardHandler(provider)
	r := setupRouter(http.MethodGet, "/dashboard", h.GetDashboard, owner)

	w := serve(r, http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, owner, provider.seen)
	assert.Contains(t, w.Body.String(), `"total_events":3`)
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)

	provider.err = errors.New("db down")
	w = serve(r, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDashboardHandlerRequiresCaller(t *testing.T) {
	h := handlers.NewDashboardHandler(&fakeStats{})
	r := setupRouter(http.MethodGet, "/dashboard", h.GetDashboard, nil)

	w := serve(r, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
