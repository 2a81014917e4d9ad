package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/cache"
)

// handleRegistryWorker resolves a worker definition through the registry
// tiers and reports which one answered.
func (s *Server) handleRegistryWorker(c *gin.Context) {
	if s.reg == nil {
		writeError(c, cache.NewError(cache.CodeNodeUnavailable, "worker registry is disabled"))
		return
	}
	lookup, err := s.reg.GetWorker(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if lookup.Worker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found", "code": "KEY_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worker":    lookup.Worker,
		"source":    lookup.Source,
		"coldStart": lookup.ColdStart,
	})
}

func (s *Server) handleWarmPods(c *gin.Context) {
	if s.reg == nil {
		writeError(c, cache.NewError(cache.CodeNodeUnavailable, "worker registry is disabled"))
		return
	}
	workerID := c.Query("workerId")
	if workerID == "" {
		badRequest(c, "warm-pods requires workerId")
		return
	}
	pods := s.reg.FindWarmPods(workerID, c.Query("region"))
	c.JSON(http.StatusOK, gin.H{"pods": pods})
}
