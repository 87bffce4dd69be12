package middlewares

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/plansync/internal/actorctx"
	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	tokens map[string]string // token -> user id
}

func (f fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	id, ok := f.tokens[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: id}, nil
}

type fakeUsers map[string]user.User

func (f fakeUsers) GetByID(_ context.Context, id string) (user.User, error) {
	u, ok := f[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := NewAuthMiddleware(
		fakeVerifier{tokens: map[string]string{"good": "u1", "orphan": "gone"}},
		fakeUsers{"u1": {ID: "u1", Email: "a@example.com"}},
	)

	r := gin.New()
	r.Use(RequestID())

	whoami := func(c *gin.Context) {
		caller := CallerFromContext(c)
		if caller == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		fromCtx, _ := actorctx.UserIDFrom(c.Request.Context())
		c.String(http.StatusOK, caller.ID+"/"+fromCtx)
	}

	r.GET("/private", m.RequireAuth(), whoami)
	r.GET("/public", m.OptionalAuth(), whoami)
	return r
}

func doGet(r http.Handler, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	r := newAuthRouter(t)

	tests := []struct {
		name   string
		authz  string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authentication credentials were not provided."},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "Invalid or expired access token"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Invalid or expired access token"},
		{"deleted user", "Bearer orphan", http.StatusUnauthorized, "Invalid or expired access token"},
		{"valid", "Bearer good", http.StatusOK, "u1/u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(r, "/private", tt.authz)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newAuthRouter(t)

	rec := doGet(r, "/public", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = doGet(r, "/public", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1/u1", rec.Body.String())

	rec = doGet(r, "/public", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requestId"`)
}

func TestMemoryLimiterRefill(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, retry, "one token refills every window/limit")

	// a rejected request does not consume a token
	_, retry, _ = l.Allow(context.Background(), "k")
	assert.Equal(t, 30*time.Second, retry)

	ok, _, _ = l.Allow(context.Background(), "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(30 * time.Second)
	ok, _, _ = l.Allow(context.Background(), "k")
	assert.True(t, ok, "refilled")

	ok, _, _ = l.Allow(context.Background(), "k")
	assert.False(t, ok)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

type countingObserver struct{ n int }

func (o *countingObserver) ObserveRateLimited(string) { o.n++ }

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &countingObserver{}

	r := gin.New()
	r.POST("/users/login", RateLimit(NewMemoryLimiter(1, time.Minute), KeyByIP, obs), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.POST("/open", RateLimit(brokenLimiter{}, KeyByIP, obs), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	post := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, post("/users/login").Code)

	rec := post("/users/login")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, obs.n)

	// limiter errors fail open
	assert.Equal(t, http.StatusNoContent, post("/open").Code)
	assert.Equal(t, http.StatusNoContent, post("/open").Code)
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.GET("/key", func(c *gin.Context) {
		if c.GetHeader("X-Caller") != "" {
			SetCaller(c, &user.User{ID: c.GetHeader("X-Caller")})
		}
		id, _ := UserIDFromContext(c)
		c.String(http.StatusOK, KeyByUserOrIP(c)+"|"+id)
	})

	get := func(caller string) string {
		req := httptest.NewRequest(http.MethodGet, "/key", nil)
		req.RemoteAddr = "198.51.100.7:4242"
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		if caller != "" {
			req.Header.Set("X-Caller", caller)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Body.String()
	}

	assert.Equal(t, "user:u-1|u-1", get("u-1"))
	assert.Equal(t, "198.51.100.7|", get(""), "untrusted forwarding headers are ignored")
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:3000"}))
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireJSON())
	r.POST("/feedback", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/feedback", nil)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/feedback", nil)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRequireJSONAcceptsStructuredSuffix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireJSON())
	r.PATCH("/events/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/events/x/remind", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPatch, "/events/x", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/merge-patch+json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// bodiless action
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events/x/remind", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaxBodyBytes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/feedback", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{"name":"too long"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "payload_too_large")

	req = httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("x", 200))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Len(t, rec.Body.String(), 36)
}

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestID(), RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[0], `"route":"/ok"`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
	assert.Contains(t, lines[2], `"level":"WARN"`)
	assert.Contains(t, lines[2], `"route":"unmatched"`)
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/docs", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "unpkg.com")
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.POST("/events", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}
