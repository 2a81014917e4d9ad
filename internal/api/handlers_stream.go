package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type xaddRequest struct {
	Namespace string            `json:"namespace"`
	Key       string            `json:"key"`
	Fields    map[string]string `json:"fields"`
}

func (s *Server) handleXAdd(c *gin.Context) {
	var req xaddRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || len(req.Fields) == 0 {
		badRequest(c, "xadd requires key and fields")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	id, err := t.Engine.XAdd(ns, req.Key, req.Fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type xrangeRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Count     int    `json:"count"`
}

func (s *Server) handleXRange(c *gin.Context) {
	var req xrangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "xrange requires key")
		return
	}
	if req.Start == "" {
		req.Start = "-"
	}
	if req.End == "" {
		req.End = "+"
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	entries, err := t.Engine.XRange(ns, req.Key, req.Start, req.End, req.Count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleXLen(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "xlen requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	n, err := t.Engine.XLen(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": n})
}
