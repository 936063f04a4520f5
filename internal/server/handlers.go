package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	guardian "github.com/modelguard/guardian"
	"github.com/modelguard/guardian/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: guardian.Name,
		Version: guardian.Version,
		Status:  "healthy",
	})
}

func (s *Server) handleIntent(c *gin.Context) {
	var req api.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	res, err := s.orch.HandleIntent(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleIngestPublish(c *gin.Context) {
	var req api.IngestPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.IngestPublish(c.Request.Context(), &req))
}

func (s *Server) handleSafeRollout(c *gin.Context) {
	var req api.SafeRolloutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.SafeRollout(c.Request.Context(), &req))
}

func (s *Server) handleModelReuse(c *gin.Context) {
	var req api.ModelReuseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.ModelReuse(c.Request.Context(), &req))
}

func (s *Server) handleGovernanceAudit(c *gin.Context) {
	var req api.GovernanceAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.GovernanceAudit(c.Request.Context(), &req))
}

func (s *Server) handleContractFirst(c *gin.Context) {
	var req api.ContractFirstRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.ContractFirst(c.Request.Context(), &req))
}

func (s *Server) handleBulkBackfill(c *gin.Context) {
	var req api.BulkBackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.BulkBackfill(c.Request.Context(), &req))
}

func (s *Server) handleIncidentRollback(c *gin.Context) {
	var req api.IncidentRollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	s.respondFlow(c)(s.flows.IncidentRollback(c.Request.Context(), &req))
}

// respondFlow writes the common flow response or the mapped error
func (s *Server) respondFlow(
	c *gin.Context,
) func(*api.FlowResponse, error) {
	return func(res *api.FlowResponse, err error) {
		if err != nil {
			writeError(c, "", err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleCancel abandons a running flow. Unknown correlation IDs report
// not found
func (s *Server) handleCancel(c *gin.Context) {
	cid := api.CorrelationID(c.Param("correlationID"))
	if !s.flows.Executor().Cancel(cid) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:         "no running flow for correlation ID",
			Status:        http.StatusNotFound,
			CorrelationID: cid,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"correlation_id": cid,
		"status":         api.FlowCancelled,
	})
}

// handleCompile is a direct passthrough to the engine compiler. A
// failed compile is a 200 with ok=false; only transport failures error
func (s *Server) handleCompile(c *gin.Context) {
	var req api.CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	cid := api.NewCorrelationID()
	result, err := s.clients.Engine.Compile(c.Request.Context(), cid, req.Pure)
	if err != nil {
		writeError(c, cid, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSDLCProjects(c *gin.Context) {
	cid := api.NewCorrelationID()
	projects, err := s.clients.SDLC.ListProjects(c.Request.Context(), cid)
	if err != nil {
		writeError(c, cid, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"count":    len(projects),
	})
}

func (s *Server) handleDepotProjects(c *gin.Context) {
	cid := api.NewCorrelationID()
	projects, err := s.clients.Depot.ListProjects(c.Request.Context(), cid)
	if err != nil {
		writeError(c, cid, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"count":    len(projects),
	})
}

func (s *Server) handleMemoryHistory(c *gin.Context) {
	eventType := api.EventType(c.Query("type"))
	entries := s.store.History(eventType)
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleMemoryStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}
