package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/musiccy/music-svc/internal/auth"
	"github.com/musiccy/music-svc/internal/catalog"
	"github.com/musiccy/music-svc/internal/config"
	"github.com/musiccy/music-svc/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	catalog  *catalog.Service
	auth     *auth.Service
	logger   *zap.Logger
	validate *validator.Validate
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, catalogSvc *catalog.Service, authSvc *auth.Service, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		catalog:  catalogSvc,
		auth:     authSvc,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/otp/send", s.handleSendOTP)
			r.Post("/otp/verify", s.handleVerifyOTP)
			r.Get("/token", s.handleRefreshToken)
			r.With(s.requireAuth).Post("/logout", s.handleLogout)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleGetUser)
			r.Patch("/", s.handleUpdateUser)
			r.Delete("/", s.handleDeleteUser)
		})

		r.Route("/song", func(r chi.Router) {
			r.Get("/", s.handleListSongs)
			r.Get("/top", s.handleTopSongs)
			r.With(s.requireAuth).Post("/", s.handleUploadSong)
			r.With(s.requireAuth).Patch("/rate", s.handleRateSong)
			r.With(s.requireAuth).Patch("/{songID}", s.handleUpdateSong)
			r.With(s.requireAuth).Delete("/{songID}", s.handleDeleteSong)
		})

		r.Route("/artist", func(r chi.Router) {
			r.Get("/", s.handleListArtists)
			r.With(s.requireAuth).Post("/", s.handleUploadArtist)
			r.With(s.requireAuth).Patch("/{artistID}", s.handleUpdateArtist)
			r.With(s.requireAuth).Delete("/{artistID}", s.handleDeleteArtist)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusGone, "INVALID_ROUTE")
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "Database unreachable")
		return
	}
	data := map[string]any{
		"app":     "music-svc",
		"version": "1.0.0",
	}
	if stats := s.store.Stats(); stats != nil {
		data["db"] = map[string]any{
			"totalConns": stats.TotalConns(),
			"idleConns":  stats.IdleConns(),
		}
	}
	s.respond(w, http.StatusOK, "HEALTH_ROUTE", data)
}
