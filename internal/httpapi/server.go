// Package httpapi wires the spec.md §6.1 HTTP surface: a gorilla/mux
// router, JWT bearer-token auth middleware, and the login/logout/
// status/metrics handlers, grounded on the teacher's Server in
// internal/api/server.go (same route-registration/Start/Stop/
// writeJSON shape, generalized from tenant CRUD + wire-protocol stats
// to customers/sync/pool stats behind internal/dbpool).
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkantaria/dbgateway/internal/authn"
	"github.com/jkantaria/dbgateway/internal/customers"
	"github.com/jkantaria/dbgateway/internal/dbpool"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
	"github.com/jkantaria/dbgateway/internal/healthcheck"
	"github.com/jkantaria/dbgateway/internal/httpresponse"
	"github.com/jkantaria/dbgateway/internal/metrics"
	"github.com/jkantaria/dbgateway/internal/synccontrollers"
)

// Server is the HTTP API server: authentication, customer CRUD, sync,
// and process/pool status.
type Server struct {
	poolMgr     *dbpool.PoolManager
	healthCheck *healthcheck.Checker
	metrics     *metrics.Collector
	auth        *authn.Authenticator
	sessions    *authn.SessionRegistry
	customers   *customers.Handlers
	sync        *synccontrollers.Handlers

	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

// NewServer wires together the already-constructed collaborators.
// healthCheck may be nil (status still reports pool stats, just no
// health section).
func NewServer(
	poolMgr *dbpool.PoolManager,
	healthCheck *healthcheck.Checker,
	m *metrics.Collector,
	auth *authn.Authenticator,
	sessions *authn.SessionRegistry,
	customerHandlers *customers.Handlers,
	syncHandlers *synccontrollers.Handlers,
) *Server {
	return &Server{
		poolMgr:     poolMgr,
		healthCheck: healthCheck,
		metrics:     m,
		auth:        auth,
		sessions:    sessions,
		customers:   customerHandlers,
		sync:        syncHandlers,
		startTime:   time.Now(),
	}
}

// Routes builds the mux.Router without starting a listener, letting
// tests drive it directly via httptest.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.requireAuth(s.logout)).Methods(http.MethodPost)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.requireAuth(s.instantMetrics)).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/internal/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/customers", s.requireAuth(s.customers.List)).Methods(http.MethodGet)
	r.HandleFunc("/customers", s.requireAuth(s.customers.Create)).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id}", s.requireAuth(s.customers.Get)).Methods(http.MethodGet)
	r.HandleFunc("/customers/{id}", s.requireAuth(s.customers.Update)).Methods(http.MethodPut)
	r.HandleFunc("/customers/{id}", s.requireAuth(s.customers.Delete)).Methods(http.MethodDelete)

	r.HandleFunc("/sync/{entity}", s.requireAuth(s.sync.Sync)).Methods(http.MethodPost)
	r.HandleFunc("/sync/{entity}/changes", s.requireAuth(s.sync.Changes)).Methods(http.MethodGet)

	s.router = r
	return r
}

// Start builds the route table and begins listening on port.
func (s *Server) Start(port int) error {
	r := s.Routes()

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	slog.Info("http api listening", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http api server error", "err", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type claimsContextKey struct{}

// requireAuth validates the Authorization: Bearer <jwt> header and
// injects the parsed claims into the request context before calling next.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			httpresponse.HandleError(w, gwerrors.Unauthorized("missing bearer token"))
			return
		}

		claims, err := s.auth.Verify(strings.TrimPrefix(header, prefix), s.sessions)
		if err != nil {
			httpresponse.HandleError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next(w, r.WithContext(ctx))
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpresponse.HandleError(w, gwerrors.InvalidRequest("request body must be a JSON object: %v", err))
		return
	}
	if req.Username == "" || req.Password == "" {
		httpresponse.HandleError(w, gwerrors.MissingParameter("username and password are required"))
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(claimsContextKey{}).(*authn.Claims)
	if !ok {
		httpresponse.HandleError(w, gwerrors.Unauthorized("missing session"))
		return
	}
	s.sessions.Invalidate(claims.ID)
	httpresponse.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

func (s *Server) poolStats() []byte {
	if s.poolMgr == nil {
		return []byte("[]")
	}
	data, err := s.poolMgr.GetAllPoolsStats()
	if err != nil {
		slog.Error("failed to collect pool stats", "err", err)
		return []byte("[]")
	}
	return data
}

// status handles GET /status (unauthenticated): process info plus raw
// pool stats and health snapshot.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := map[string]any{
		"uptimeSeconds": int(time.Since(s.startTime).Seconds()),
		"goVersion":     runtime.Version(),
		"goroutines":    runtime.NumGoroutine(),
		"memoryMb":      float64(mem.Alloc) / 1024 / 1024,
		"pools":         json.RawMessage(s.poolStats()),
	}
	if s.healthCheck != nil {
		body["health"] = s.healthCheck.Snapshot()
	}
	httpresponse.WriteJSON(w, http.StatusOK, body)
}

// instantMetrics handles GET /metrics (authenticated): a JSON
// rendering of the same pool stats, distinct from the Prometheus
// exposition mounted at /internal/metrics.
func (s *Server) instantMetrics(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteJSON(w, http.StatusOK, map[string]any{
		"pools": json.RawMessage(s.poolStats()),
	})
}
