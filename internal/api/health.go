package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/duet/internal/media"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database"`
	Time     string                 `json:"time"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

type databaseHealth interface {
	Health(ctx context.Context) error
}

type probeBreaker interface {
	GetState() media.CircuitState
	GetFailures() int
}

type sessionCounter interface {
	Count() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       databaseHealth
	breaker  probeBreaker
	sessions sessionCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database databaseHealth, breaker probeBreaker, sessions sessionCounter) *HealthHandler {
	return &HealthHandler{db: database, breaker: breaker, sessions: sessions}
}

// Check handles the health check endpoint. An open probe breaker degrades the
// status without failing the check; sessions still play already-loaded media.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}

	if h.sessions != nil {
		response.Details["active_sessions"] = h.sessions.Count()
	}

	if h.breaker != nil {
		state := h.breaker.GetState()
		response.Details["probe_circuit"] = state.String()
		if state == media.StateOpen {
			response.Status = "degraded"
			response.Details["probe_failures"] = h.breaker.GetFailures()
		}
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database databaseHealth, breaker probeBreaker, sessions sessionCounter) {
	handler := NewHealthHandler(database, breaker, sessions)
	apiGroup.GET("/health", handler.Check)
}
