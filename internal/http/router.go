package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/http/handlers"
	"github.com/geocoder89/plansync/internal/http/middlewares"
	"github.com/geocoder89/plansync/internal/notifications"
	"github.com/geocoder89/plansync/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// UsersRepo is everything the HTTP layer needs from the identity store.
type UsersRepo interface {
	handlers.UserStore
	middlewares.UserLookup
}

// Deps are built once in main and shared by every request.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Users     UsersRepo
	Events    handlers.EventsStore
	Feedback  handlers.FeedbackStore
	Refresh   handlers.RefreshTokenStore
	Dashboard handlers.StatsProvider

	JWT      *auth.Manager
	Hasher   handlers.PasswordHasher
	Notifier interface {
		notifications.EventNotifier
		notifications.WelcomeNotifier
	}

	// AuthLimiter guards the unauthenticated auth endpoints, keyed by ip.
	AuthLimiter middlewares.Limiter
	// RemindLimiter caps reminder fan-outs per caller.
	RemindLimiter middlewares.Limiter

	Checks map[string]handlers.Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		slog.Default().Warn("invalid TRUSTED_PROXIES, trusting none", "err", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(ctx *gin.Context) { handlers.RespondNotFound(ctx, "Resource not found") })
	r.NoMethod(handlers.RespondMethodNotAllowed)

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.Config.ServiceName))
	var rateObs middlewares.RateLimitObserver
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
		rateObs = d.Prom
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Config.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// ops
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMw := middlewares.NewAuthMiddleware(d.JWT, d.Users)
	limiter := d.AuthLimiter
	if limiter == nil {
		limiter = middlewares.NewMemoryLimiter(d.Config.AuthRateLimit, time.Duration(d.Config.AuthRateLimitWindow)*time.Second)
	}
	rateLimit := middlewares.RateLimit(limiter, middlewares.KeyByIP, rateObs)

	var remindLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Config.RemindRateLimit > 0 {
		rl := d.RemindLimiter
		if rl == nil {
			rl = middlewares.NewMemoryLimiter(d.Config.RemindRateLimit, time.Duration(d.Config.RemindRateLimitWindow)*time.Second)
		}
		remindLimit = middlewares.RateLimit(rl, middlewares.KeyByUserOrIP, rateObs)
	}

	authHandler := handlers.NewAuthHandler(d.Users, d.Refresh, d.JWT, d.Hasher, d.Notifier, d.Config)
	eventsHandler := handlers.NewEventsHandler(d.Events, d.Notifier)
	feedbackHandler := handlers.NewFeedbackHandler(d.Feedback)
	dashboardHandler := handlers.NewDashboardHandler(d.Dashboard)

	users := r.Group("/users")
	{
		users.POST("/register", rateLimit, authHandler.Register)
		users.POST("/login", rateLimit, authHandler.Login)
		users.POST("/forgot-password", rateLimit, authHandler.ForgotPassword)
		users.GET("/profile", authMw.RequireAuth(), authHandler.Profile)
	}

	sessions := r.Group("/auth")
	{
		sessions.POST("/refresh", rateLimit, authHandler.Refresh)
		sessions.POST("/logout", authHandler.Logout)
	}

	events := r.Group("/events")
	{
		events.GET("", authMw.OptionalAuth(), eventsHandler.ListEvents)
		events.POST("", authMw.RequireAuth(), eventsHandler.CreateEvent)
		events.GET("/:id", authMw.OptionalAuth(), eventsHandler.GetEventById)
		events.PUT("/:id", authMw.RequireAuth(), eventsHandler.UpdateEvent)
		events.PATCH("/:id", authMw.RequireAuth(), eventsHandler.PatchEvent)
		events.DELETE("/:id", authMw.RequireAuth(), eventsHandler.DeleteEvent)
		events.POST("/:id/remind", authMw.RequireAuth(), remindLimit, eventsHandler.RemindEvent)
	}

	r.GET("/dashboard", authMw.RequireAuth(), dashboardHandler.GetDashboard)

	// read and create only; other methods fall through to NoMethod (405)
	feedback := r.Group("/feedback")
	{
		feedback.GET("", feedbackHandler.ListFeedback)
		feedback.POST("", feedbackHandler.CreateFeedback)
		feedback.GET("/:id", feedbackHandler.GetFeedback)
	}

	return r
}
