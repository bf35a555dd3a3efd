package reflector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tordrt/schemamodeler/internal/schema"
)

// Store keeps reflected schemas by cache key. A ttl of zero never expires.
type Store interface {
	Get(ctx context.Context, key string) (*schema.Schema, bool, error)
	Set(ctx context.Context, key string, s *schema.Schema, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

type memoryEntry struct {
	schema  *schema.Schema
	expires time.Time // zero means never
}

// MemoryStore keeps schemas in process memory. Get returns the pointer that
// was stored, so repeated lookups yield the identical object.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, key string) (*schema.Schema, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.schema, true, nil
}

// Set implements Store
func (m *MemoryStore) Set(_ context.Context, key string, s *schema.Schema, ttl time.Duration) error {
	e := memoryEntry{schema: s}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Delete implements Store
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Purge implements Store
func (m *MemoryStore) Purge(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

const redisKeyPrefix = "schemamodeler:schema:"

// RedisStore shares reflected schemas between processes as JSON values.
// Lookups decode a fresh copy each time.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedisStore connects to redisURL (redis://host:port/db) and checks the
// connection before returning
func DialRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStore(rdb), nil
}

// Close releases the underlying client
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

// Get implements Store
func (r *RedisStore) Get(ctx context.Context, key string) (*schema.Schema, bool, error) {
	data, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var s schema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached schema: %w", err)
	}
	return &s, true, nil
}

// Set implements Store
func (r *RedisStore) Set(ctx context.Context, key string, s *schema.Schema, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return r.rdb.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

// Delete implements Store
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, redisKeyPrefix+key).Err()
}

// Purge removes every schema entry, leaving other keys in the database alone
func (r *RedisStore) Purge(ctx context.Context) error {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}
