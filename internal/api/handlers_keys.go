package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/cache"
)

func (s *Server) handleKeys(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	pattern := c.DefaultQuery("pattern", "*")
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	keys, err := t.Engine.Keys(ns, pattern)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (s *Server) handleScan(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	cursor := c.DefaultQuery("cursor", "0")
	pattern := c.DefaultQuery("pattern", "*")
	count := 10
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(c, "invalid count %q", raw)
			return
		}
		count = parsed
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	keys, next, err := t.Engine.Scan(ns, cursor, pattern, count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "cursor": next})
}

func (s *Server) handleType(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "type requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t.Engine.Type(ns, key)})
}

type renameRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	NewKey    string `json:"newKey"`
}

func (s *Server) handleRename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || req.NewKey == "" {
		badRequest(c, "rename requires key and newKey")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	renamed, err := t.Engine.Rename(ns, req.Key, req.NewKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": renamed})
}

// handleClear drops one namespace, or the whole resolved engine when
// all=true. Provisioned namespaces may only be cleared by their owner, and
// all=true is confined to dedicated engines so it cannot cross tenants.
func (s *Server) handleClear(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	if t.Instance != nil && c.GetHeader("x-owner-address") != t.Instance.Owner {
		writeError(c, cache.ErrUnauthorized("namespace may only be cleared by its owner"))
		return
	}
	if c.Query("all") == "true" {
		if t.Instance == nil {
			badRequest(c, "all=true requires a provisioned instance")
			return
		}
		t.Engine.FlushAll()
	} else {
		t.Engine.FlushDB(ns)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
