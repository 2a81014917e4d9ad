package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/router"
)

type setRequest struct {
	Namespace  string `json:"namespace"`
	Key        string `json:"key"`
	Value      string `json:"value"`
	TTLSeconds *int64 `json:"ttlSeconds"`
	NX         bool   `json:"nx"`
	XX         bool   `json:"xx"`
}

// encryptValue applies the TEE codec when the namespace is TEE-backed.
func (s *Server) encryptValue(c *gin.Context, t router.Target, value string) (string, bool) {
	if t.TEE == nil {
		return value, true
	}
	out, err := t.TEE.EncryptString(c.Request.Context(), value)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return out, true
}

// decryptValue reverses encryptValue on the read path.
func (s *Server) decryptValue(c *gin.Context, t router.Target, value string) (string, bool) {
	if t.TEE == nil {
		return value, true
	}
	out, err := t.TEE.DecryptString(c.Request.Context(), value)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return out, true
}

func (s *Server) handleSet(c *gin.Context) {
	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "set requires key and value")
		return
	}
	if req.NX && req.XX {
		badRequest(c, "nx and xx are mutually exclusive")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	value, ok := s.encryptValue(c, t, req.Value)
	if !ok {
		return
	}
	stored, err := t.Engine.Set(ns, req.Key, value, cache.SetOptions{NX: req.NX, XX: req.XX, TTLSeconds: req.TTLSeconds})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": stored})
}

func (s *Server) handleGet(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "get requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	value, found, err := t.Engine.Get(ns, key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"value": nil})
		return
	}
	plain, ok := s.decryptValue(c, t, value)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": plain})
}

type keysRequest struct {
	Namespace string   `json:"namespace"`
	Key       string   `json:"key"`
	Keys      []string `json:"keys"`
}

// keyList merges the singular and plural spellings.
func (r keysRequest) keyList() []string {
	if len(r.Keys) > 0 {
		return r.Keys
	}
	if r.Key != "" {
		return []string{r.Key}
	}
	return nil
}

func (s *Server) handleDel(c *gin.Context) {
	var req keysRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.keyList()) == 0 {
		badRequest(c, "del requires key or keys")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	deleted := t.Engine.Del(ns, req.keyList()...)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) handleMGet(c *gin.Context) {
	var req keysRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Keys) == 0 {
		badRequest(c, "mget requires keys")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	values := t.Engine.MGet(ns, req.Keys...)
	if t.TEE != nil {
		for i, v := range values {
			if v == nil {
				continue
			}
			plain, ok := s.decryptValue(c, t, *v)
			if !ok {
				return
			}
			values[i] = &plain
		}
	}
	c.JSON(http.StatusOK, gin.H{"values": values})
}

type msetRequest struct {
	Namespace string            `json:"namespace"`
	Pairs     map[string]string `json:"pairs"`
}

func (s *Server) handleMSet(c *gin.Context) {
	var req msetRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Pairs) == 0 {
		badRequest(c, "mset requires pairs")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	pairs := req.Pairs
	if t.TEE != nil {
		pairs = make(map[string]string, len(req.Pairs))
		for k, v := range req.Pairs {
			enc, ok := s.encryptValue(c, t, v)
			if !ok {
				return
			}
			pairs[k] = enc
		}
	}
	if err := t.Engine.MSet(ns, pairs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type deltaRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	By        *int64 `json:"by"`
}

func (r deltaRequest) delta() int64 {
	if r.By == nil {
		return 1
	}
	return *r.By
}

func (s *Server) handleIncr(c *gin.Context) {
	var req deltaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "incr requires key")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	if t.TEE != nil {
		// The counter would be stored as plaintext digits the read path
		// cannot decrypt.
		badRequest(c, "incr is not supported on tee-backed instances")
		return
	}
	value, err := t.Engine.IncrBy(ns, req.Key, req.delta())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

func (s *Server) handleDecr(c *gin.Context) {
	var req deltaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "decr requires key")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	if t.TEE != nil {
		badRequest(c, "decr is not supported on tee-backed instances")
		return
	}
	value, err := t.Engine.DecrBy(ns, req.Key, req.delta())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

type appendRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

func (s *Server) handleAppend(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, "append requires key and value")
		return
	}
	ns := namespaceOr(req.Namespace)
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	if t.TEE != nil {
		// Appending to ciphertext would corrupt it.
		badRequest(c, "append is not supported on tee-backed instances")
		return
	}
	length, err := t.Engine.Append(ns, req.Key, req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": length})
}

func (s *Server) handleExists(c *gin.Context) {
	ns := namespaceOr(c.Query("namespace"))
	key := c.Query("key")
	if key == "" {
		badRequest(c, "exists requires key")
		return
	}
	t, ok := s.target(c, ns)
	if !ok {
		return
	}
	n := t.Engine.Exists(ns, key)
	c.JSON(http.StatusOK, gin.H{"exists": n > 0})
}
