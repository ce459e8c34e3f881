package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

type Server struct {
	public       *http.Server
	publicRouter *chi.Mux

	handler *Handler
	live    http.Handler
}

// New builds the collector API. live serves the websocket feed and may be nil.
func New(handler *Handler, live http.Handler) *Server {
	return &Server{
		publicRouter: chi.NewRouter(),

		handler: handler,
		live:    live,
	}
}

// Router registers the routes and returns the root handler without listening.
func (s *Server) Router(mws ...func(http.Handler) http.Handler) http.Handler {
	s.registerPublicRoutes(mws...)
	return s.publicRouter
}

func (s *Server) ServePublic(addr string, mws ...func(http.Handler) http.Handler) error {
	s.public = &http.Server{
		Addr:              addr,
		Handler:           s.Router(mws...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// websocket writes set their own deadlines after the upgrade
		WriteTimeout: 15 * time.Second,
	}

	return s.public.ListenAndServe()
}

func (s *Server) ShutdownPublic(ctx context.Context) error {
	if s.public == nil {
		return nil
	}
	if err := s.public.Shutdown(ctx); err != nil {
		return s.public.Close()
	}
	return nil
}

func (s *Server) registerPublicRoutes(middlewares ...func(http.Handler) http.Handler) {
	s.publicRouter.Use(middleware.RequestID, middleware.Recoverer)
	s.publicRouter.Use(middlewares...)
	s.publicRouter.Get("/_/ready", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	s.publicRouter.Route("/api", func(r chi.Router) {
		r.Use(CORS)

		r.Post("/usage", s.handler.Usage)
		r.Post("/analytics", s.handler.Analytics)

		r.Get("/stats", s.handler.Stats)
		r.Get("/recent", s.handler.Recent)
		r.Get("/usage-over-time", s.handler.UsageOverTime)
		r.Get("/users", s.handler.Users)
		r.Get("/data", s.handler.Data)

		r.Get("/setup", s.handler.SetupStatus)
		r.Post("/setup", s.handler.Setup)

		if s.live != nil {
			r.Get("/live", s.live.ServeHTTP)
		}
	})
}
