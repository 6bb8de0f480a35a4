// Package httpapi exposes the storage contract over HTTP: JSON endpoints for
// every entity, bcrypt+JWT auth, multipart evidence upload, prometheus
// metrics, and a health endpoint reporting the active storage driver.
package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"fieldops/internal/infra/blob"
	"fieldops/pkg/domain"
)

// Server wires the storage and photo backends to HTTP routes.
type Server struct {
	store     domain.Store
	photos    blob.Store
	log       *zap.Logger
	jwtSecret []byte
	metrics   *metrics
}

// New builds a Server. The prometheus registry is injected so tests can use
// a private one.
func New(store domain.Store, photos blob.Store, log *zap.Logger, jwtSecret string, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		store:     store,
		photos:    photos,
		log:       log,
		jwtSecret: []byte(jwtSecret),
		metrics:   newMetrics(reg),
	}
}

// Handler returns the fully routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("GET /api/users/field", s.requireUser(s.handleListFieldUsers))
	mux.HandleFunc("GET /api/users/near", s.requireUser(s.handleUsersNear))
	mux.HandleFunc("GET /api/users/{id}", s.requireUser(s.handleGetUser))
	mux.HandleFunc("PUT /api/users/{id}/location", s.requireUser(s.handleUpdateUserLocation))
	mux.HandleFunc("PUT /api/users/{id}/last-active", s.requireUser(s.handleUpdateUserLastActive))
	mux.HandleFunc("PUT /api/users/{id}/team", s.requireSupervisor(s.handleAssignUserToTeam))

	// Per-user task views live under /api/users so the task routes keep a
	// single wildcard shape; a literal segment where /api/tasks/{id}/updates
	// has its wildcard would make ServeMux registration panic.
	mux.HandleFunc("GET /api/users/{userId}/tasks", s.requireUser(s.handleListTasksByAssignee))
	mux.HandleFunc("GET /api/users/{userId}/created-tasks", s.requireUser(s.handleListTasksByCreator))
	mux.HandleFunc("GET /api/users/{userId}/task-stats", s.requireUser(s.handleTaskStats))

	mux.HandleFunc("POST /api/teams", s.requireUser(s.handleCreateTeam))
	mux.HandleFunc("GET /api/teams", s.requireUser(s.handleListTeams))
	mux.HandleFunc("GET /api/teams/{id}", s.requireUser(s.handleGetTeam))
	mux.HandleFunc("PUT /api/teams/{id}/status", s.requireSupervisor(s.handleUpdateTeamStatus))
	mux.HandleFunc("GET /api/teams/{id}/members", s.requireUser(s.handleListTeamMembers))

	mux.HandleFunc("POST /api/tasks", s.requireUser(s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks", s.requireUser(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/search", s.requireUser(s.handleSearchTasks))
	mux.HandleFunc("PUT /api/tasks/bulk-status", s.requireSupervisor(s.handleBulkUpdateTaskStatus))
	mux.HandleFunc("GET /api/tasks/{id}", s.requireUser(s.handleGetTask))
	mux.HandleFunc("PUT /api/tasks/{id}/status", s.requireUser(s.handleUpdateTaskStatus))
	mux.HandleFunc("PUT /api/tasks/{id}/assign", s.requireSupervisor(s.handleAssignTask))
	mux.HandleFunc("GET /api/tasks/{id}/updates", s.requireUser(s.handleListTaskUpdates))
	mux.HandleFunc("POST /api/tasks/{id}/updates", s.requireUser(s.handleCreateTaskUpdate))
	mux.HandleFunc("GET /api/tasks/{id}/evidence", s.requireUser(s.handleListTaskEvidence))
	mux.HandleFunc("POST /api/tasks/{id}/evidence", s.requireUser(s.handleUploadEvidence))

	mux.HandleFunc("POST /api/features", s.requireUser(s.handleCreateFeature))
	mux.HandleFunc("GET /api/features", s.requireUser(s.handleListFeatures))
	mux.HandleFunc("GET /api/features/search", s.requireUser(s.handleSearchFeatures))
	mux.HandleFunc("GET /api/features/stats", s.requireUser(s.handleFeatureStats))
	mux.HandleFunc("GET /api/features/{id}", s.requireUser(s.handleGetFeature))
	mux.HandleFunc("PUT /api/features/{id}", s.requireUser(s.handleUpdateFeature))
	mux.HandleFunc("DELETE /api/features/{id}", s.requireUser(s.handleDeleteFeature))

	mux.HandleFunc("POST /api/boundaries", s.requireSupervisor(s.handleCreateBoundary))
	mux.HandleFunc("GET /api/boundaries/{id}", s.requireUser(s.handleGetBoundary))
	mux.HandleFunc("PUT /api/boundaries/{id}/status", s.requireUser(s.handleUpdateBoundaryStatus))
	mux.HandleFunc("PUT /api/boundaries/{id}/assign", s.requireSupervisor(s.handleAssignBoundary))
	mux.HandleFunc("GET /api/boundaries/{id}/features", s.requireUser(s.handleFeaturesInBoundary))
	mux.HandleFunc("GET /api/boundaries/{id}/tasks", s.requireUser(s.handleTasksInBoundary))

	return s.metrics.instrument(s.logRequests(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"driver": string(s.store.Driver()),
	})
}

// logRequests emits one debug line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
