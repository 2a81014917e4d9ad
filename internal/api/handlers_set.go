package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type membersRequest struct {
	Namespace string   `json:"namespace"`
	Key       string   `json:"key"`
	Members   []string `json:"members"`
}

func (s *Server) handleSAdd(c *gin.Context) {
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Members) == 0 {
		badRequest(c, "sadd requires key and members")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	added, err := t.Engine.SAdd(ns, req.Key, req.Members...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (s *Server) handleSRem(c *gin.Context) {
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Members) == 0 {
		badRequest(c, "srem requires key and members")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	removed, err := t.Engine.SRem(ns, req.Key, req.Members...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleSMembers(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "smembers requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	members, err := t.Engine.SMembers(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleSIsMember(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key, member := c.Query("key"), c.Query("member")
	if key == "" || member == "" {
		badRequest(c, "sismember requires key and member")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	isMember, err := t.Engine.SIsMember(ns, key, member)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isMember": isMember})
}

func (s *Server) handleSCard(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "scard requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	n, err := t.Engine.SCard(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cardinality": n})
}

func (s *Server) handleSPop(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "spop requires key")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	member, found, err := t.Engine.SPop(ns, req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"member": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}

func (s *Server) handleSRandMember(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "srandmember requires key")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	member, found, err := t.Engine.SRandMember(ns, req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"member": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}
