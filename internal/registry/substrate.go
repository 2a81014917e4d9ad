package registry

import "github.com/dws-network/dws-cache/internal/cache"

// engineSubstrate adapts a cache engine to the registry's Substrate slice.
type engineSubstrate struct {
	engine *cache.Engine
}

// NewEngineSubstrate wraps the engine.
func NewEngineSubstrate(engine *cache.Engine) Substrate {
	return &engineSubstrate{engine: engine}
}

func (s *engineSubstrate) Set(namespace, key, value string, ttlSeconds int64) error {
	ttl := ttlSeconds
	_, err := s.engine.Set(namespace, key, value, cache.SetOptions{TTLSeconds: &ttl})
	return err
}

func (s *engineSubstrate) Get(namespace, key string) (string, bool, error) {
	return s.engine.Get(namespace, key)
}
