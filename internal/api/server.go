// Package api exposes the cache service over HTTP/JSON: the command surface,
// the pub/sub and provisioning endpoints, rate limiting and the error
// mapping. All handlers are thin adapters onto the engine and its
// collaborators.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dws-network/dws-cache/internal/pubsub"
	"github.com/dws-network/dws-cache/internal/ratelimit"
	"github.com/dws-network/dws-cache/internal/registry"
	"github.com/dws-network/dws-cache/internal/router"
	"github.com/dws-network/dws-cache/pkg/observability"
)

// ServerConfig holds the HTTP server tunables.
type ServerConfig struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// Server wires the handlers to their collaborators.
type Server struct {
	cfg     ServerConfig
	manager *router.Manager
	broker  *pubsub.Broker
	limiter *ratelimit.Limiter
	reg     *registry.Registry
	metrics *observability.Metrics
	logger  observability.Logger

	engine *gin.Engine
	srv    *http.Server
}

// NewServer builds the gin engine and registers every route group. The
// worker registry may be nil when that plane is disabled.
func NewServer(cfg ServerConfig, manager *router.Manager, broker *pubsub.Broker, limiter *ratelimit.Limiter, reg *registry.Registry, metrics *observability.Metrics, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	s := &Server{
		cfg:     cfg,
		manager: manager,
		broker:  broker,
		limiter: limiter,
		reg:     reg,
		metrics: metrics,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracingMiddleware())
	engine.Use(s.metricsMiddleware())
	engine.Use(s.rateLimitMiddleware())
	s.RegisterRoutes(engine.Group("/cache"))
	s.engine = engine
	return s
}

// RegisterRoutes attaches every endpoint group under the given base group.
func (s *Server) RegisterRoutes(g *gin.RouterGroup) {
	// Strings
	g.POST("/set", s.handleSet)
	g.GET("/get", s.handleGet)
	g.POST("/del", s.handleDel)
	g.POST("/mget", s.handleMGet)
	g.POST("/mset", s.handleMSet)
	g.POST("/incr", s.handleIncr)
	g.POST("/decr", s.handleDecr)
	g.POST("/append", s.handleAppend)
	g.GET("/exists", s.handleExists)

	// TTL
	g.GET("/ttl", s.handleTTL)
	g.POST("/expire", s.handleExpire)
	g.POST("/persist", s.handlePersist)

	// Hashes
	g.GET("/hget", s.handleHGet)
	g.POST("/hset", s.handleHSet)
	g.POST("/hmset", s.handleHMSet)
	g.GET("/hgetall", s.handleHGetAll)
	g.POST("/hdel", s.handleHDel)
	g.GET("/hlen", s.handleHLen)
	g.POST("/hincrby", s.handleHIncrBy)

	// Lists
	g.POST("/lpush", s.handleLPush)
	g.POST("/rpush", s.handleRPush)
	g.GET("/lpop", s.handleLPop)
	g.GET("/rpop", s.handleRPop)
	g.POST("/lrange", s.handleLRange)
	g.GET("/llen", s.handleLLen)
	g.POST("/ltrim", s.handleLTrim)

	// Sets
	g.POST("/sadd", s.handleSAdd)
	g.POST("/srem", s.handleSRem)
	g.GET("/smembers", s.handleSMembers)
	g.GET("/sismember", s.handleSIsMember)
	g.GET("/scard", s.handleSCard)
	g.POST("/spop", s.handleSPop)
	g.POST("/srandmember", s.handleSRandMember)

	// Sorted sets
	g.POST("/zadd", s.handleZAdd)
	g.GET("/zrange", s.handleZRange)
	g.POST("/zrangebyscore", s.handleZRangeByScore)
	g.POST("/zrem", s.handleZRem)
	g.GET("/zscore", s.handleZScore)
	g.GET("/zcard", s.handleZCard)

	// Streams
	g.POST("/xadd", s.handleXAdd)
	g.POST("/xrange", s.handleXRange)
	g.GET("/xlen", s.handleXLen)

	// Key space
	g.GET("/keys", s.handleKeys)
	g.GET("/scan", s.handleScan)
	g.GET("/type", s.handleType)
	g.POST("/rename", s.handleRename)
	g.DELETE("/clear", s.handleClear)

	// Pub/sub
	g.POST("/publish", s.handlePublish)
	g.GET("/pubsub/channels", s.handleChannels)
	g.POST("/pubsub/numsub", s.handleNumSub)
	g.GET("/pubsub/numpat", s.handleNumPat)

	// Plans and instances
	g.GET("/plans", s.handlePlans)
	g.POST("/instances", s.handleCreateInstance)
	g.GET("/instances", s.handleListInstances)
	g.GET("/instances/:id", s.handleGetInstance)
	g.DELETE("/instances/:id", s.handleDeleteInstance)

	// Worker registry (read side)
	g.GET("/registry/workers/:id", s.handleRegistryWorker)
	g.GET("/registry/warm-pods", s.handleWarmPods)

	// Introspection
	g.GET("/health", s.handleHealth)
	g.GET("/stats", s.handleStats)
	g.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Router returns the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.engine }

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.cfg.ListenAddress,
	})
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// defaultNamespace is used when a request omits the namespace field.
const defaultNamespace = "default"

func namespaceOr(ns string) string {
	if ns == "" {
		return defaultNamespace
	}
	return ns
}

// target resolves the serving engine for a namespace, applying the billing
// gate for provisioned subscription namespaces. A request whose client has
// already gone away never enters the engine.
func (s *Server) target(c *gin.Context, namespace string) (router.Target, bool) {
	if c.Request.Context().Err() != nil {
		c.AbortWithStatus(http.StatusRequestTimeout)
		return router.Target{}, false
	}
	if err := s.manager.Authorize(c.Request.Context(), namespace); err != nil {
		writeError(c, err)
		return router.Target{}, false
	}
	return s.manager.Resolve(namespace), true
}
