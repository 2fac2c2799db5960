package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediocregopher/radix/v3"
	"github.com/portfolio-contact/backend/internal/config"
	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/handler"
	"github.com/portfolio-contact/backend/internal/logging"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/portfolio-contact/backend/internal/service"
	"github.com/portfolio-contact/backend/internal/validation"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("load config failed", "error", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		logging.Fatal("open store failed", "driver", cfg.Store.Driver, "error", err)
	}
	defer closeRepo()

	schema := validation.DefaultSchema()
	if cfg.Dashboard.FormSchemaPath != "" {
		if schema, err = validation.LoadSchema(cfg.Dashboard.FormSchemaPath); err != nil {
			logging.Fatal("load form schema failed", "path", cfg.Dashboard.FormSchemaPath, "error", err)
		}
	}
	loc, _ := cfg.Location()

	contactService := service.NewContactService(repo,
		service.WithSchema(schema),
		service.WithEmailNotifier(service.LogEmailNotifier{}),
	)

	hub := handler.NewNotificationHub()
	engine := dashboard.NewEngine(repo, dashboard.WithNotifier(hub))
	renderer := dashboard.NewRenderer(loc)
	actions := dashboard.NewActions(engine, contactService, renderer)

	limiter, closeLimiter := newLimiter(cfg.Limits)
	defer closeLimiter()
	rateLimiter := handler.NewRateLimiter(limiter, cfg.Limits.TrustedProxies)

	h := handler.New(repo, cfg.Server.FrontendURL, handler.WithStoreDriver(cfg.Store.Driver), handler.WithDashboard(engine))
	contactHandler := handler.NewContactHandler(contactService, schema, cfg.Limits.TrustedProxies)
	adminHandler := handler.NewAdminHandler(engine, actions, renderer, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("POST /api/contact", rateLimiter.Middleware(http.HandlerFunc(contactHandler.Submit)))
	mux.HandleFunc("POST /api/contact/validate", contactHandler.Validate)

	mux.HandleFunc("GET /api/admin/messages", adminHandler.Messages)
	mux.HandleFunc("GET /api/admin/counters", adminHandler.Counters)
	mux.HandleFunc("GET /api/admin/messages/{id}", adminHandler.Get)
	mux.HandleFunc("PATCH /api/admin/messages/{id}/read", adminHandler.ToggleRead)
	mux.HandleFunc("DELETE /api/admin/messages/{id}", adminHandler.Delete)
	mux.HandleFunc("POST /api/admin/messages/{id}/reply", adminHandler.Reply)
	mux.HandleFunc("GET /api/admin/export", adminHandler.Export)
	mux.HandleFunc("GET /api/admin/stream", adminHandler.Stream)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler.RequestLogger(handler.SecurityHeaders(h.CORS(mux))),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the admin stream is long-lived.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A lost feed leaves the desk serving its last state.
		_ = engine.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("server listening", "addr", server.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server failed", "error", err)
	}
	slog.Info("server stopped")
}

// newLimiter picks the Redis counters when REDIS_ADDR is set and the
// in-process window otherwise.
func newLimiter(cfg config.LimitsConfig) (handler.Limiter, func()) {
	if cfg.RedisAddr == "" {
		l := handler.NewMemoryLimiter(cfg.SubmitPerMinute)
		return l, l.Close
	}
	pool, err := radix.NewPool("tcp", cfg.RedisAddr, 10)
	if err != nil {
		logging.Fatal("connect to redis failed", "addr", cfg.RedisAddr, "error", err)
	}
	return handler.NewRedisLimiter(pool, cfg.SubmitPerMinute), func() { _ = pool.Close() }
}
