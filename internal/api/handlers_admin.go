package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	total := s.manager.TotalStats()
	payload := gin.H{
		"namespaces":  total.Namespaces,
		"keys":        total.Keys,
		"memoryBytes": total.MemoryBytes,
		"maxBytes":    total.MaxBytes,
		"hits":        total.Hits,
		"misses":      total.Misses,
		"hitRate":     total.HitRate(),
		"evictions":   total.Evictions,
		"expiredKeys": total.ExpiredKeys,
		"instances":   s.manager.InstanceCount(),
		"tee":         s.manager.TEECount(),
	}
	if ns := c.Query("namespace"); ns != "" {
		payload["namespace"] = s.manager.Resolve(ns).Engine.StatsFor(ns)
	}
	c.JSON(http.StatusOK, payload)
}
