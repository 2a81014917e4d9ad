package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type hsetRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

func (s *Server) handleHSet(c *gin.Context) {
	var req hsetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || req.Field == "" {
		badRequest(c, "hset requires key, field and value")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	added, err := t.Engine.HSet(ns, req.Key, req.Field, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

type hmsetRequest struct {
	Namespace string            `json:"namespace"`
	Key       string            `json:"key"`
	Fields    map[string]string `json:"fields"`
}

func (s *Server) handleHMSet(c *gin.Context) {
	var req hmsetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Fields) == 0 {
		badRequest(c, "hmset requires key and fields")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	if err := t.Engine.HMSet(ns, req.Key, req.Fields); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleHGet(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key, field := c.Query("key"), c.Query("field")
	if key == "" || field == "" {
		badRequest(c, "hget requires key and field")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	value, found, err := t.Engine.HGet(ns, key, field)
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

func (s *Server) handleHGetAll(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "hgetall requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	fields, err := t.Engine.HGetAll(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

type hdelRequest struct {
	Namespace string   `json:"namespace"`
	Key       string   `json:"key"`
	Fields    []string `json:"fields"`
}

func (s *Server) handleHDel(c *gin.Context) {
	var req hdelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Fields) == 0 {
		badRequest(c, "hdel requires key and fields")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	removed, err := t.Engine.HDel(ns, req.Key, req.Fields...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleHLen(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "hlen requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	n, err := t.Engine.HLen(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": n})
}

type hincrbyRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Field     string `json:"field"`
	By        int64  `json:"by"`
}

func (s *Server) handleHIncrBy(c *gin.Context) {
	var req hincrbyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || req.Field == "" {
		badRequest(c, "hincrby requires key and field")
		return
	}
	if req.By == 0 {
		req.By = 1
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	value, err := t.Engine.HIncrBy(ns, req.Key, req.Field, req.By)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}
