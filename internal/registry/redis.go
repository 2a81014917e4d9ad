package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisDialTimeout = 5 * time.Second

const (
	redisWorkerPrefix = "worker:"
	redisCIDPrefix    = "worker-cid:"
	redisActiveSet    = "workers:active"
)

// RedisStore persists worker definitions in a Redis instance. Useful when
// the fleet already runs a managed Redis and a relational store is overkill.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies the backend.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the definition by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*WorkerDefinition, error) {
	raw, err := s.client.Get(ctx, redisWorkerPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	var def WorkerDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// GetByCID resolves the id indexed under the code content id, then the
// definition.
func (s *RedisStore) GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error) {
	id, err := s.client.Get(ctx, redisCIDPrefix+cid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListActive returns every definition in the active set.
func (s *RedisStore) ListActive(ctx context.Context) ([]*WorkerDefinition, error) {
	ids, err := s.client.SMembers(ctx, redisActiveSet).Result()
	if err != nil {
		return nil, err
	}
	defs := make([]*WorkerDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := s.Get(ctx, id)
		if err == ErrWorkerNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Put stores a definition and maintains the cid index and active set. Used
// by deployment tooling and tests.
func (s *RedisStore) Put(ctx context.Context, def *WorkerDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisWorkerPrefix+def.ID, data, 0)
	pipe.Set(ctx, redisCIDPrefix+def.CodeCID, def.ID, 0)
	if def.Active {
		pipe.SAdd(ctx, redisActiveSet, def.ID)
	} else {
		pipe.SRem(ctx, redisActiveSet, def.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
