// Package server provides the HTTP service for wapi-dashboard: the marketing
// pages, the auth/token API, and the dashboard API driven by the per-account
// view-model.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/DhisHub/wapi-dashboard/internal/auth"
	"github.com/DhisHub/wapi-dashboard/internal/config"
	"github.com/DhisHub/wapi-dashboard/internal/dashboard"
	"github.com/DhisHub/wapi-dashboard/internal/db"
	"github.com/DhisHub/wapi-dashboard/internal/identity"
	"github.com/DhisHub/wapi-dashboard/internal/server/sse"
)

// Service wires the HTTP layer together.
type Service struct {
	cfg        *config.Config
	store      *db.Store
	identity   *identity.Client
	auth       *auth.Service
	dashboards *dashboard.Manager
	sse        *sse.Broadcaster
	router     chi.Router
	httpServer *http.Server
	startTime  time.Time
}

// NewService creates the service and mounts all routes.
func NewService(cfg *config.Config, store *db.Store, identityClient *identity.Client,
	authService *auth.Service, dashboards *dashboard.Manager) *Service {

	svc := &Service{
		cfg:        cfg,
		store:      store,
		identity:   identityClient,
		auth:       authService,
		dashboards: dashboards,
		sse:        sse.NewBroadcaster(),
		router:     chi.NewRouter(),
		startTime:  time.Now(),
	}

	// Every view-model change is pushed to that account's connected tabs.
	dashboards.OnChange(func(userID string, snap dashboard.Snapshot) {
		svc.sse.BroadcastTo(userID, snap)
	})

	svc.routes()
	return svc
}

func (s *Service) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Marketing pages, pure rendering.
	r.Get("/", s.handleIndex)
	r.Get("/contact", s.handlePage("contact.html"))
	r.Get("/signin", s.handlePage("signin.html"))
	r.Get("/signup", s.handlePage("signup.html"))
	r.Get("/dashboard", s.handlePage("dashboard.html"))
	r.Get("/assets/*", s.handleAssets)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/signin", s.handleSignIn)
			r.Post("/forgot-password", s.handleForgotPassword)

			r.Group(func(r chi.Router) {
				r.Use(s.requireUser)
				r.Post("/signout", s.handleSignOut)
				r.Post("/reset-password", s.handleResetPassword)
				r.Get("/profile", s.handleProfile)
				r.Delete("/account", s.handleDeleteAccount)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Route("/token", func(r chi.Router) {
				r.Get("/", s.handleGetToken)
				r.Post("/", s.handleGenerateToken)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/state", s.handleState)
				r.Get("/events", s.handleEvents)
				r.Post("/sessions", s.handleCreateSession)
				r.Post("/sessions/refresh", s.handleRefresh)
				r.Post("/sessions/{name}/select", s.handleSelect)
				r.Post("/sessions/{name}/{action}", s.handleAction)
				r.Delete("/sessions/{name}", s.handleDeleteSession)
				r.Get("/qr", s.handleQR)
				r.Post("/qr/retry", s.handleRetryQR)
			})
		})
	})
}

// Handler returns the root handler, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until the listener fails.
func (s *Service) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.router,
	}
	log.Info().Str("addr", s.cfg.Addr()).Msg("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports liveness plus store connectivity.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"uptime": time.Since(s.startTime).String(),
	})
}
