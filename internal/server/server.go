package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/modelguard/guardian/internal/client"
	"github.com/modelguard/guardian/internal/flow"
	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/internal/orchestrator"
	"github.com/modelguard/guardian/pkg/api"
)

// Server implements the HTTP API server for the guardian
type Server struct {
	orch    *orchestrator.Orchestrator
	flows   *flow.Flows
	clients *client.Set
	store   *memory.Store
	keys    map[string]struct{}
	sockets map[*Client]struct{}
	mu      sync.Mutex
}

const apiKeyHeader = "X-API-Key"

// NewServer creates a new HTTP API server. Requests carrying a key
// outside the allow-list are rejected before any core logic
func NewServer(
	orch *orchestrator.Orchestrator, flows *flow.Flows,
	clients *client.Set, store *memory.Store, apiKeys []string,
) *Server {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, key := range apiKeys {
		keys[key] = struct{}{}
	}
	return &Server{
		orch:    orch,
		flows:   flows,
		clients: clients,
		store:   store,
		keys:    keys,
		sockets: map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API
// endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization, "+apiKeyHeader,
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health endpoints are unauthenticated
	router.GET("/health", s.handleHealth)
	router.GET("/health/live", s.handleHealth)
	router.GET("/health/ready", s.handleHealth)

	authed := router.Group("", s.requireAPIKey)
	{
		authed.POST("/api/intent", s.handleIntent)

		flows := authed.Group("/flows")
		{
			flows.POST("/usecase1/ingest-publish", s.handleIngestPublish)
			flows.POST("/usecase2/safe-rollout", s.handleSafeRollout)
			flows.POST("/usecase3/model-reuse", s.handleModelReuse)
			flows.POST("/usecase5/governance-audit", s.handleGovernanceAudit)
			flows.POST("/usecase6/contract-first", s.handleContractFirst)
			flows.POST("/usecase7/bulk-backfill", s.handleBulkBackfill)
			flows.POST("/usecase8/incident-rollback", s.handleIncidentRollback)
			flows.DELETE("/:correlationID", s.handleCancel)
		}

		adapters := authed.Group("/adapters")
		{
			adapters.POST("/engine/compile", s.handleCompile)
			adapters.GET("/sdlc/projects", s.handleSDLCProjects)
			adapters.GET("/depot/projects", s.handleDepotProjects)
		}

		authed.GET("/memory/history", s.handleMemoryHistory)
		authed.GET("/memory/stats", s.handleMemoryStats)

		authed.GET("/events/ws", s.handleWebSocket)
	}

	return router
}

// requireAPIKey rejects requests whose key is missing or outside the
// allow-list
func (s *Server) requireAPIKey(c *gin.Context) {
	key := c.GetHeader(apiKeyHeader)
	if _, ok := s.keys[key]; !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{
			Error:  api.ErrAuth.Error(),
			Status: http.StatusUnauthorized,
		})
		return
	}
	c.Next()
}

// writeError maps the error taxonomy onto HTTP status codes
func writeError(c *gin.Context, cid api.CorrelationID, err error) {
	status := http.StatusInternalServerError
	switch {
	case api.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, api.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, flow.ErrManifestNotFound):
		status = http.StatusNotFound
	default:
		var ae *api.AdapterError
		if errors.As(err, &ae) {
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, api.ErrorResponse{
		Error:         err.Error(),
		Status:        status,
		CorrelationID: cid,
	})
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
