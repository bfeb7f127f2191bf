package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/chore"
	"github.com/dukerupert/choregate/internal/config"
	"github.com/dukerupert/choregate/internal/database"
	"github.com/dukerupert/choregate/internal/handler"
	"github.com/dukerupert/choregate/internal/metrics"
	"github.com/dukerupert/choregate/internal/middleware"
	"github.com/dukerupert/choregate/internal/notify"
	"github.com/dukerupert/choregate/internal/recurrence"
	"github.com/dukerupert/choregate/internal/scheduler"
	"github.com/dukerupert/choregate/internal/store"
	ws "github.com/dukerupert/choregate/internal/websocket"
)

type Server struct {
	db            *database.DB
	cfg           *config.Config
	hub           *ws.Hub
	metrics       *metrics.Metrics
	users         *store.UserStore
	choreH        *handler.ChoreHandler
	notificationH *handler.NotificationHandler
	accessH       *handler.AccessHandler
	scheduler     *scheduler.Scheduler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

// New wires the stores, engine, dispatcher, access gate and sweeps. sender
// may be nil, in which case notifications stay in-app.
func New(db *database.DB, cfg *config.Config, ctrl access.Controller, sender notify.Sender, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger)
	m := metrics.New()

	userStore := store.NewUserStore(db)
	choreStore := store.NewChoreStore(db)
	notificationStore := store.NewNotificationStore(db)

	dispatchOpts := []notify.Option{
		notify.WithPublisher(hub),
		notify.WithMetrics(m),
		notify.WithSendTimeout(cfg.EmailTimeout),
	}
	if sender != nil {
		dispatchOpts = append(dispatchOpts, notify.WithSender(sender))
	}
	dispatcher := notify.NewDispatcher(notificationStore, userStore, logger, dispatchOpts...)

	gate := access.NewGate(userStore, ctrl, cfg.RouterTimeout, m, logger)
	engine := chore.NewEngine(choreStore, userStore, dispatcher, gate, logger,
		chore.WithPublisher(hub),
		chore.WithMetrics(m),
	)
	generator := recurrence.NewGenerator(choreStore, dispatcher, logger,
		recurrence.WithOncePerDay(cfg.RecurrenceOncePerDay),
		recurrence.WithPublisher(hub),
		recurrence.WithMetrics(m),
	)
	sweeper := scheduler.NewSweeper(choreStore, userStore, dispatcher, engine, gate, generator, logger,
		scheduler.WithMetrics(m),
	)
	sched, err := scheduler.New(sweeper, loc, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		metrics:       m,
		users:         userStore,
		choreH:        handler.NewChoreHandler(engine, logger),
		notificationH: handler.NewNotificationHandler(dispatcher, logger),
		accessH:       handler.NewAccessHandler(access.NewService(userStore, gate, logger), logger),
		scheduler:     sched,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}, nil
}

// Scheduler returns the sweep scheduler so the caller controls its lifecycle.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Routes acting on behalf of a user
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	apiMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger))

	limit := middleware.RateLimit(s.rateLimiter, middleware.ActorOrIP, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)
	requireActor := middleware.RequireActor(s.users)
	outerMux.Handle("/", requireActor(limit(apiMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Chore API routes
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("PUT /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("PUT /api/chores/{id}/verify", s.choreH.Verify)

	// Notification API routes
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications", s.notificationH.Create)
	mux.HandleFunc("PUT /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.notificationH.Delete)

	// Internet access API routes
	mux.HandleFunc("GET /api/access/status", s.accessH.Status)
	mux.HandleFunc("GET /api/access/me", s.accessH.Me)
	mux.HandleFunc("PUT /api/access", s.accessH.Override)
}
