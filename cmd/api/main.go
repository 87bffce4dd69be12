package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
	"github.com/geocoder89/plansync/internal/config"
	"github.com/geocoder89/plansync/internal/dashboard"
	"github.com/geocoder89/plansync/internal/db"
	httpx "github.com/geocoder89/plansync/internal/http"
	"github.com/geocoder89/plansync/internal/http/handlers"
	"github.com/geocoder89/plansync/internal/http/middlewares"
	"github.com/geocoder89/plansync/internal/notifications"
	"github.com/geocoder89/plansync/internal/observability"
	"github.com/geocoder89/plansync/internal/redisclient"
	"github.com/geocoder89/plansync/internal/repo/memory"
	"github.com/geocoder89/plansync/internal/repo/postgres"
	"github.com/geocoder89/plansync/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// store bundles whichever backend STORAGE_DRIVER selected.
type store struct {
	users interface {
		httpx.UsersRepo
		notifications.RecipientLister
	}
	events interface {
		handlers.EventsStore
		dashboard.EventReader
	}
	feedback handlers.FeedbackStore
	refresh  handlers.RefreshTokenStore
	ping     handlers.Pinger
	close    func()
}

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env, cfg.ServiceName)
	slog.SetDefault(log)

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Env,
			Endpoint:    cfg.OTLPEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	st, err := openStore(context.Background(), cfg, prom)
	if err != nil {
		log.Error("storage init failed", "driver", cfg.StorageDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	hasher := security.NewHasher(cfg.BcryptCost)

	bootCtx, cancelBoot := config.WithTimeout(context.Background(), 10*time.Second)
	err = db.EnsureSuperuser(bootCtx, st.users, hasher, cfg.Superuser, log)
	cancelBoot()
	if err != nil {
		log.Error("superuser bootstrap failed", "err", err)
		os.Exit(1)
	}

	dispatcher := notifications.NewDispatcher(
		notifications.NewTimeoutSender(newSender(cfg.Mail, log), cfg.Mail.Timeout()),
		st.users,
		notifications.DispatcherConfig{
			From:     cfg.Mail.SenderAddress(),
			Location: cfg.Location(),
			Logger:   log,
			Metrics:  prom,
		},
	)

	checks := map[string]handlers.Pinger{"storage": st.ping}

	var limiter, remindLimiter middlewares.Limiter
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		limiter = middlewares.NewRedisLimiter(rdb.Cmdable(), cfg.AuthRateLimit, time.Duration(cfg.AuthRateLimitWindow)*time.Second)
		remindLimiter = middlewares.NewRedisLimiter(rdb.Cmdable(), cfg.RemindRateLimit, time.Duration(cfg.RemindRateLimitWindow)*time.Second)
		checks["redis"] = rdb.Ping
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:        cfg,
		Log:           log,
		Prom:          prom,
		Gatherer:      reg,
		Users:         st.users,
		Events:        st.events,
		Feedback:      st.feedback,
		Refresh:       st.refresh,
		Dashboard:     dashboard.NewAggregator(st.events),
		JWT:           auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		Hasher:        hasher,
		Notifier:      dispatcher,
		AuthLimiter:   limiter,
		RemindLimiter: remindLimiter,
		Checks:        checks,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	ctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}

	log.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom) (store, error) {
	if cfg.StorageDriver == "memory" {
		mem := memory.NewStore()
		return store{
			users:    memory.NewUsersRepo(mem),
			events:   memory.NewEventsRepo(mem),
			feedback: memory.NewFeedbackRepo(mem),
			refresh:  memory.NewRefreshTokensRepo(mem),
			close:    func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		return store{}, err
	}

	if err := db.Migrate(pool); err != nil {
		pool.Close()
		return store{}, err
	}

	return store{
		users:    postgres.NewUsersRepo(pool, prom),
		events:   postgres.NewEventsRepo(pool, prom),
		feedback: postgres.NewFeedbackRepo(pool, prom),
		refresh:  postgres.NewRefreshTokensRepo(pool, prom),
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}

func newSender(mail config.MailConfig, log *slog.Logger) notifications.Sender {
	switch mail.Provider {
	case "resend":
		return notifications.NewResendSender(mail.ResendAPIKey)
	case "log":
		return notifications.NewLogSender(log)
	default:
		return notifications.NewSMTPSender(notifications.SMTPConfig{
			Host:     mail.Host,
			Port:     mail.Port,
			User:     mail.User,
			Password: mail.Password,
		})
	}
}
