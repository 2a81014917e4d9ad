package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/router"
)

func (s *Server) handlePlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": s.manager.Plans()})
}

type createInstanceRequest struct {
	PlanID    string `json:"planId"`
	Namespace string `json:"namespace"`
}

func (s *Server) handleCreateInstance(c *gin.Context) {
	owner := c.GetHeader("x-owner-address")
	if !router.ValidOwnerAddress(owner) {
		writeError(c, cache.ErrUnauthorized("missing or malformed x-owner-address header"))
		return
	}
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlanID == "" {
		badRequest(c, "instance creation requires planId")
		return
	}
	inst, err := s.manager.CreateInstance(owner, req.PlanID, req.Namespace)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"instance": inst})
}

func (s *Server) handleListInstances(c *gin.Context) {
	owner := c.GetHeader("x-owner-address")
	c.JSON(http.StatusOK, gin.H{"instances": s.manager.ListInstances(owner)})
}

func (s *Server) handleGetInstance(c *gin.Context) {
	inst, ok := s.manager.GetInstance(c.Param("id"))
	if !ok {
		writeError(c, cache.NewError(cache.CodeInstanceNotFound, "instance %q not found", c.Param("id")))
		return
	}
	stats := s.manager.Resolve(inst.Namespace).Engine.StatsFor(inst.Namespace)
	c.JSON(http.StatusOK, gin.H{"instance": inst, "stats": stats})
}

func (s *Server) handleDeleteInstance(c *gin.Context) {
	owner := c.GetHeader("x-owner-address")
	if !router.ValidOwnerAddress(owner) {
		writeError(c, cache.ErrUnauthorized("missing or malformed x-owner-address header"))
		return
	}
	if err := s.manager.DeleteInstance(c.Param("id"), owner); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
