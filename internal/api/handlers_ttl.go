package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleTTL(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "ttl requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ttl": t.Engine.TTL(ns, key)})
}

type expireRequest struct {
	Namespace  string `json:"namespace"`
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttlSeconds"`
	// At sets an absolute expiry in unix seconds instead of a relative TTL.
	At int64 `json:"at"`
}

func (s *Server) handleExpire(c *gin.Context) {
	var req expireRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "expire requires key and ttlSeconds")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	var applied bool
	var err error
	if req.At > 0 {
		applied, err = t.Engine.ExpireAt(ns, req.Key, req.At)
	} else {
		applied, err = t.Engine.Expire(ns, req.Key, req.TTLSeconds)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": applied})
}

type keyRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

func (s *Server) handlePersist(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "persist requires key")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": t.Engine.Persist(ns, req.Key)})
}
