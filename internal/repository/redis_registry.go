package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrArtifactNotFound is returned when a (name, version) pair is absent.
var ErrArtifactNotFound = errors.New("registry: artifact not found")

// RedisRegistry is an explicit (name, version) -> artifact key-value store
// backed by Redis. Injected where a model catalog is needed; no ambient
// global registry state.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "marketforge"
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) artifactKey(name, version string) string {
	return fmt.Sprintf("%s:registry:%s:%s", r.prefix, name, version)
}

func (r *RedisRegistry) versionsKey(name string) string {
	return fmt.Sprintf("%s:registry:%s:versions", r.prefix, name)
}

func (r *RedisRegistry) Put(ctx context.Context, name, version string, artifact []byte) error {
	if name == "" || version == "" {
		return fmt.Errorf("registry: name and version required")
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.artifactKey(name, version), artifact, 0)
	pipe.SAdd(ctx, r.versionsKey(name), version)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("registry put %s/%s: %w", name, version, err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, name, version string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.artifactKey(name, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("registry get %s/%s: %w", name, version, err)
	}
	return b, nil
}

func (r *RedisRegistry) Versions(ctx context.Context, name string) ([]string, error) {
	vs, err := r.client.SMembers(ctx, r.versionsKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("registry versions %s: %w", name, err)
	}
	sort.Strings(vs)
	return vs, nil
}

// MemoryRegistry is a map-backed Registry for tests and single-process runs
// without Redis.
type MemoryRegistry struct {
	mu   sync.RWMutex
	data map[string][]byte
	vers map[string]map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		data: make(map[string][]byte),
		vers: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRegistry) Put(_ context.Context, name, version string, artifact []byte) error {
	if name == "" || version == "" {
		return fmt.Errorf("registry: name and version required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name+"/"+version] = append([]byte(nil), artifact...)
	if r.vers[name] == nil {
		r.vers[name] = make(map[string]struct{})
	}
	r.vers[name][version] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, name, version string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.data[name+"/"+version]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return append([]byte(nil), b...), nil
}

func (r *MemoryRegistry) Versions(_ context.Context, name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.vers[name]))
	for v := range r.vers[name] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
