package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
)

// Config configures a Server.
type Config struct {
	Kinds []schema.Kind
	Users []User
	// Seed maps a kind name to its initial records.
	Seed map[string][]record.Fields

	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
	Logger     *slog.Logger
}

// Server is the reference remote store.
type Server struct {
	cfg         Config
	router      *chi.Mux
	logger      *slog.Logger
	auth        *Authenticator
	faults      *FaultRegistry
	collections map[string]*collection
}

// New builds a Server and loads its seed data.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := NewAuthenticator(cfg.Secret, cfg.TokenTTL, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		router:      chi.NewRouter(),
		logger:      logger,
		auth:        auth,
		faults:      NewFaultRegistry(),
		collections: make(map[string]*collection),
	}
	for _, k := range cfg.Kinds {
		if _, dup := s.collections[k.Name]; dup {
			return nil, fmt.Errorf("duplicate kind %q", k.Name)
		}
		s.collections[k.Name] = newCollection(k)
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)
	r.Use(s.faults.Middleware)

	r.Post("/api/login", s.handleLogin)

	for _, c := range s.collections {
		c := c
		r.Route(c.kind.Path, func(r chi.Router) {
			r.Get("/", c.handleList)
			r.Get("/{id}", c.handleGet)
			r.Group(func(r chi.Router) {
				if c.kind.RequiresAuth {
					r.Use(s.auth.RequireAuth)
				}
				r.Post("/", c.handleCreate)
				r.Put("/{id}", c.handleUpdate)
				r.Delete("/{id}", c.handleDelete)
			})
		})
	}

	r.Route("/admin", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/reset", s.handleReset)
		r.Get("/faults", func(w http.ResponseWriter, _ *http.Request) {
			JSON(w, http.StatusOK, s.faults.All())
		})
		r.Post("/faults", s.handleSetFault)
		r.Delete("/faults", s.handleRemoveFault)
	})
}

// ServeHTTP implements http.Handler so the server can be used in httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Faults returns the fault registry.
func (s *Server) Faults() *FaultRegistry {
	return s.faults
}

// Records returns the stored records of a kind.
func (s *Server) Records(kind string) []record.Record {
	c, ok := s.collections[kind]
	if !ok {
		return nil
	}
	return c.items.List()
}

// DeleteRecord removes a record directly, as another client would.
func (s *Server) DeleteRecord(kind, id string) bool {
	c, ok := s.collections[kind]
	if !ok {
		return false
	}
	return c.items.Delete(id)
}

// Reset restores seed users and records and clears faults.
func (s *Server) Reset() error {
	s.auth.Clear()
	for _, u := range s.cfg.Users {
		if err := s.auth.AddUser(u); err != nil {
			return err
		}
	}
	for name, c := range s.collections {
		c.items.Clear()
		for i, fields := range s.cfg.Seed[name] {
			if err := c.kind.Validate("seed", fields); err != nil {
				return fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			if _, err := c.insert(fields); err != nil {
				return fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
		}
	}
	for name := range s.cfg.Seed {
		if _, ok := s.collections[name]; !ok {
			return fmt.Errorf("seed for unknown kind %q", name)
		}
	}
	s.faults.Reset()
	return nil
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("devserver listening", "addr", ln.Addr().String())
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("devserver shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	token, p, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	JSON(w, http.StatusOK, loginResponse{Token: token, Name: p.Name, Username: p.Username})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.Reset(); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleSetFault(w http.ResponseWriter, r *http.Request) {
	var f Fault
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil || f.Path == "" {
		Error(w, http.StatusBadRequest, "fault needs a path")
		return
	}
	s.faults.Set(f)
	JSON(w, http.StatusOK, f)
}

func (s *Server) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	var f Fault
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !s.faults.Remove(f) {
		Error(w, http.StatusNotFound, "no such fault")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
