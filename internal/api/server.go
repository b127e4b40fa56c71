// Package api serves sessions, configs and modules over HTTP as JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/session"
	"github.com/abhisek/trainer/internal/store"
)

const requestTimeout = 30 * time.Second

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	Log            *zap.Logger
	// SessionOptions are passed to every session.Manager the server opens.
	SessionOptions []session.Option
}

// Server is the HTTP surface. Open sessions are cached, one Manager each.
type Server struct {
	st     *store.Store
	mods   *module.Loaded
	editor *session.Editor
	opts   Options
	log    *zap.Logger
	router chi.Router

	mu       sync.Mutex
	managers map[int]*session.Manager
	opening  singleflight.Group
}

// New builds a Server and its routes.
func New(st *store.Store, mods *module.Loaded, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		st:       st,
		mods:     mods,
		editor:   session.NewEditor(st, log),
		opts:     opts,
		log:      log.Named("api"),
		managers: make(map[int]*session.Manager),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Get("/modules", s.listModules)

	r.Route("/configs", func(r chi.Router) {
		r.Get("/", s.listConfigs)
		r.Get("/{id}", s.getConfig)
		r.Put("/{id}", s.putConfig)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Put("/", s.editSession)
			r.Delete("/", s.removeSession)
			r.Get("/tasks", s.listTasks)
			r.Post("/tasks/{taskID}/attempts", s.submit)
			r.Get("/summary", s.summary)
		})
	})
	return r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

// manager returns the cached Manager for a session, opening it on first use.
// Opens run without s.mu, one at a time per session.
func (s *Server) manager(ctx context.Context, id int) (*session.Manager, error) {
	if m := s.cached(id); m != nil {
		return m, nil
	}
	v, err, _ := s.opening.Do(strconv.Itoa(id), func() (any, error) {
		if m := s.cached(id); m != nil {
			return m, nil
		}
		m := session.NewManager(s.st, s.mods, s.log, s.opts.SessionOptions...)
		if _, err := m.Open(context.WithoutCancel(ctx), id); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.managers[id] = m
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Manager), nil
}

func (s *Server) cached(id int) *session.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managers[id]
}

// forget drops a cached Manager so the next request reloads the session.
func (s *Server) forget(id int) {
	s.mu.Lock()
	delete(s.managers, id)
	s.mu.Unlock()
}

// forgetAll drops every cached Manager, which also drops their config caches.
func (s *Server) forgetAll() {
	s.mu.Lock()
	clear(s.managers)
	s.mu.Unlock()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
