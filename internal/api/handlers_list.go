package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type pushRequest struct {
	Namespace string   `json:"namespace"`
	Key       string   `json:"key"`
	Values    []string `json:"values"`
}

func (s *Server) handleLPush(c *gin.Context) { s.handlePush(c, true) }
func (s *Server) handleRPush(c *gin.Context) { s.handlePush(c, false) }

func (s *Server) handlePush(c *gin.Context, left bool) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Values) == 0 {
		badRequest(c, "push requires key and values")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	var length int
	var err error
	if left {
		length, err = t.Engine.LPush(ns, req.Key, req.Values...)
	} else {
		length, err = t.Engine.RPush(ns, req.Key, req.Values...)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": length})
}

func (s *Server) handleLPop(c *gin.Context) { s.handlePop(c, true) }
func (s *Server) handleRPop(c *gin.Context) { s.handlePop(c, false) }

func (s *Server) handlePop(c *gin.Context, left bool) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "pop requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	var value string
	var found bool
	var err error
	if left {
		value, found, err = t.Engine.LPop(ns, key)
	} else {
		value, found, err = t.Engine.RPop(ns, key)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"value": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

type rangeRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Start     int    `json:"start"`
	Stop      int    `json:"stop"`
}

func (s *Server) handleLRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "lrange requires key, start and stop")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	values, err := t.Engine.LRange(ns, req.Key, req.Start, req.Stop)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": values})
}

func (s *Server) handleLLen(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "llen requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	n, err := t.Engine.LLen(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": n})
}

func (s *Server) handleLTrim(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "ltrim requires key, start and stop")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	if err := t.Engine.LTrim(ns, req.Key, req.Start, req.Stop); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
