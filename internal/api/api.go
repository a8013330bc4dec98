// Package api exposes desensitization over HTTP.
//
// Endpoints:
//
//	GET    /status           - health, uptime, store kind
//	GET    /metrics          - counter snapshot
//	POST   /desensitize      - {"text","source","persist"} → {"text","count","mapping","mappingId"}
//	POST   /restore          - {"text","mappingId"} or {"text","mapping"} → {"text","count"}
//	GET    /mappings         - stored mapping summaries
//	GET    /mappings/{id}    - one stored mapping
//	DELETE /mappings/{id}    - forget a stored mapping
//	POST   /archive          - {"files":[{"name","content"}]} → ZIP of outputs and mappings
//
// Everything except /status requires the bearer token when one is
// configured. The server speaks HTTP/1.1 and cleartext HTTP/2 (h2c).
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"numeric-desensitizer/internal/config"
	"numeric-desensitizer/internal/logger"
	"numeric-desensitizer/internal/metrics"
	"numeric-desensitizer/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server is the desensitization API server.
type Server struct {
	cfg       *config.Config
	store     store.Store
	metrics   *metrics.Metrics
	log       *logger.Logger
	token     string // empty = no auth
	startTime time.Time
}

// New creates an API server. st keeps persisted mappings; m may be nil.
func New(cfg *config.Config, st store.Store, m *metrics.Metrics, log *logger.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		cfg:       cfg,
		store:     st,
		metrics:   m,
		log:       log,
		token:     cfg.APIToken,
		startTime: time.Now(),
	}
	if s.token != "" {
		log.Info("auth", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the chi router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.limitBody)

		r.Get("/metrics", s.handleMetrics)
		r.Post("/desensitize", s.handleDesensitize)
		r.Post("/restore", s.handleRestore)
		r.Post("/archive", s.handleArchive)

		r.Get("/mappings", s.handleMappingList)
		r.Get("/mappings/{id}", s.handleMappingGet)
		r.Delete("/mappings/{id}", s.handleMappingDelete)
	})
	return r
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("unauthorized", "%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		MaxReadFrameSize:     1 << 20,
		IdleTimeout:          90 * time.Second,
	}
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), h2s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Infof("listening", "%s (http/1.1, h2c)", ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("stopped", "server shut down")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a JSON request body, mapping an oversized body to 413.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
