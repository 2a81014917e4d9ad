package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/cache"
)

type zaddRequest struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Members   []cache.ZMember `json:"members"`
}

func (s *Server) handleZAdd(c *gin.Context) {
	var req zaddRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Members) == 0 {
		badRequest(c, "zadd requires key and members")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	added, err := t.Engine.ZAdd(ns, req.Key, req.Members...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (s *Server) handleZRange(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "zrange requires key")
		return
	}
	start, err := strconv.Atoi(c.DefaultQuery("start", "0"))
	if err != nil {
		badRequest(c, "invalid start index")
		return
	}
	stop, err := strconv.Atoi(c.DefaultQuery("stop", "-1"))
	if err != nil {
		badRequest(c, "invalid stop index")
		return
	}
	withScores := c.Query("withScores") == "true"
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	members, err := t.Engine.ZRange(ns, key, start, stop, withScores)
	if err != nil {
		writeError(c, err)
		return
	}
	if withScores {
		c.JSON(http.StatusOK, gin.H{"members": members})
		return
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Member
	}
	c.JSON(http.StatusOK, gin.H{"members": names})
}

type zrangeByScoreRequest struct {
	Namespace string  `json:"namespace"`
	Key       string  `json:"key"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

func (s *Server) handleZRangeByScore(c *gin.Context) {
	var req zrangeByScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "zrangebyscore requires key, min and max")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	members, err := t.Engine.ZRangeByScore(ns, req.Key, req.Min, req.Max)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleZRem(c *gin.Context) {
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Members) == 0 {
		badRequest(c, "zrem requires key and members")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	removed, err := t.Engine.ZRem(ns, req.Key, req.Members...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleZScore(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key, member := c.Query("key"), c.Query("member")
	if key == "" || member == "" {
		badRequest(c, "zscore requires key and member")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	score, found, err := t.Engine.ZScore(ns, key, member)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"score": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": score})
}

func (s *Server) handleZCard(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "zcard requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	n, err := t.Engine.ZCard(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cardinality": n})
}
