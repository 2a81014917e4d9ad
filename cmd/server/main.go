// Command server runs the dws-cache service: the HTTP command surface, the
// shared engine, the pub/sub broker, the rate limiter and (optionally) the
// worker location registry.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dws-network/dws-cache/internal/api"
	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/config"
	"github.com/dws-network/dws-cache/internal/events"
	"github.com/dws-network/dws-cache/internal/pubsub"
	"github.com/dws-network/dws-cache/internal/ratelimit"
	"github.com/dws-network/dws-cache/internal/registry"
	"github.com/dws-network/dws-cache/internal/router"
	"github.com/dws-network/dws-cache/internal/tee"
	"github.com/dws-network/dws-cache/pkg/observability"
)

func main() {
	_ = godotenv.Load()

	logger := observability.NewStandardLogger("dws-cache")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", map[string]interface{}{"error": err.Error()})
	}
	if sl, ok := logger.(*observability.StandardLogger); ok && cfg.LogLevel == "debug" {
		logger = sl.WithLevel(observability.LogLevelDebug)
	}

	bus := events.NewBus()
	metrics := observability.NewMetrics()

	engineCfg := cache.Config{
		MaxMemoryMB:       cfg.Cache.MaxMemoryMB,
		DefaultTTLSeconds: cfg.Cache.DefaultTTLSeconds,
		MaxTTLSeconds:     cfg.Cache.MaxTTLSeconds,
		ReaperInterval:    cfg.Cache.ReaperInterval,
		EvictionPolicy:    cfg.Cache.EvictionPolicy,
	}
	shared := cache.NewEngine(engineCfg, bus, logger.WithPrefix("engine"))
	broker := pubsub.NewBroker(logger.WithPrefix("pubsub"))
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Window:      cfg.RateLimit.Window,
		Limit:       cfg.RateLimit.Limit,
		GlobalRPS:   cfg.RateLimit.GlobalRPS,
		GlobalBurst: cfg.RateLimit.GlobalBurst,
	}, logger.WithPrefix("ratelimit"))

	manager := router.NewManager(shared, engineCfg, teeProvider(cfg), nil, bus, logger.WithPrefix("router"))

	var reg *registry.Registry
	if cfg.Registry.Enabled {
		store, closeStore := workerStore(cfg, logger)
		defer closeStore()
		podID := cfg.Registry.PodID
		if podID == "" {
			podID = uuid.NewString()
		}
		reg = registry.New(registry.Config{
			Pod: registry.PodInfo{
				PodID:    podID,
				Region:   cfg.Registry.Region,
				Endpoint: cfg.Registry.Endpoint,
			},
		}, registry.NewEngineSubstrate(shared), store, bus, logger.WithPrefix("registry"))
		reg.Start()
	}

	registerGauges(metrics, manager, shared, reg)

	server := api.NewServer(api.ServerConfig{
		ListenAddress: cfg.API.ListenAddress,
		ReadTimeout:   cfg.API.ReadTimeout,
		WriteTimeout:  cfg.API.WriteTimeout,
		IdleTimeout:   cfg.API.IdleTimeout,
	}, manager, broker, limiter, reg, metrics, logger.WithPrefix("api"))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("shutdown did not drain cleanly", map[string]interface{}{"error": err.Error()})
	}
	if reg != nil {
		reg.Close()
	}
	limiter.Close()
	manager.Close()
	shared.Close()
	broker.Close()
	bus.Close()
}

// teeProvider builds the configured provider, or nil when none is set.
func teeProvider(cfg *config.Config) tee.Provider {
	switch cfg.TEE.Provider {
	case "":
		return nil
	case "simulated":
		return tee.NewSimulatedProvider("simulated", cfg.TEE.Seed)
	default:
		return tee.NewHTTPProvider(cfg.TEE.Provider, cfg.TEE.Endpoint)
	}
}

// workerStore builds the persistent worker store from the configured driver.
// A missing or unknown driver yields a nil store: the registry then serves
// from its memory and cache tiers only.
func workerStore(cfg *config.Config, logger observability.Logger) (registry.PersistentStore, func()) {
	switch cfg.Registry.StoreDriver {
	case "postgres":
		store, err := registry.NewPostgresStore(cfg.Registry.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open postgres worker store", map[string]interface{}{"error": err.Error()})
		}
		return store, func() { _ = store.Close() }
	case "redis":
		store, err := registry.NewRedisStore(cfg.Registry.RedisAddr, "", cfg.Registry.RedisDB)
		if err != nil {
			logger.Fatal("failed to open redis worker store", map[string]interface{}{"error": err.Error()})
		}
		return store, func() { _ = store.Close() }
	default:
		return nil, func() {}
	}
}

// registerGauges exposes the engine, instance and fleet counters as
// scrape-time functions.
func registerGauges(m *observability.Metrics, manager *router.Manager, shared *cache.Engine, reg *registry.Registry) {
	m.RegisterGaugeFunc("cache_keys_total", "Live keys across all engines", func() float64 {
		return float64(manager.TotalStats().Keys)
	})
	m.RegisterGaugeFunc("cache_memory_bytes", "Bytes of value data across all engines", func() float64 {
		return float64(manager.TotalStats().MemoryBytes)
	})
	m.RegisterCounterFunc("cache_hits_total", "Cache hits across all engines", func() float64 {
		return float64(manager.TotalStats().Hits)
	})
	m.RegisterCounterFunc("cache_misses_total", "Cache misses across all engines", func() float64 {
		return float64(manager.TotalStats().Misses)
	})
	m.RegisterGaugeFunc("cache_hit_rate", "Hits over total reads", func() float64 {
		return manager.TotalStats().HitRate()
	})
	m.RegisterCounterFunc("cache_evictions_total", "Keys evicted by the memory budget", func() float64 {
		return float64(manager.TotalStats().Evictions)
	})
	m.RegisterCounterFunc("cache_expired_keys_total", "Keys removed by TTL expiry", func() float64 {
		return float64(manager.TotalStats().ExpiredKeys)
	})
	m.RegisterGaugeFunc("cache_instances_total", "Provisioned instances", func() float64 {
		return float64(manager.InstanceCount())
	})
	m.RegisterGaugeFunc("cache_tee_instances", "Provisioned TEE-backed instances", func() float64 {
		return float64(manager.TEECount())
	})
	m.RegisterGaugeFunc("cache_nodes_total", "Pods with a live registry heartbeat", func() float64 {
		if reg == nil {
			return 0
		}
		beats, err := shared.Keys(registry.Namespace, "heartbeat:*")
		if err != nil {
			return 0
		}
		return float64(len(beats))
	})
}
