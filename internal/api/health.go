package api

import (
	"net/http"
	"runtime"
	"time"

	"ai-character-chat-simulator/backend/pkg/health"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the checker's component status
type HealthHandler struct {
	checker *health.Checker
	version string
	started time.Time
	clients func() int
}

// NewHealthHandler creates the handler; clients reports connected websocket clients
func NewHealthHandler(checker *health.Checker, version string, clients func() int) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		version: version,
		started: time.Now(),
		clients: clients,
	}
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status     string                       `json:"status"`
	Timestamp  time.Time                    `json:"timestamp"`
	Version    string                       `json:"version"`
	Uptime     string                       `json:"uptime"`
	Clients    int                          `json:"websocket_clients"`
	Goroutines int                          `json:"goroutines"`
	Components map[string]*health.Component `json:"components"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if !h.checker.IsSystemHealthy() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	clients := 0
	if h.clients != nil {
		clients = h.clients()
	}

	c.JSON(code, HealthResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Clients:    clients,
		Goroutines: runtime.NumGoroutine(),
		Components: h.checker.GetStatus(),
	})
}
