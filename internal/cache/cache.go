// Package cache stores embedding vectors so identical texts are embedded
// once. Redis is used when reachable; otherwise vectors are kept in process.
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Cache stores vectors by key. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
	Close() error
}

// Config selects and tunes the cache backend.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	MaxEntries    int // in-process cache only
}

const defaultMaxEntries = 10000

// New returns a Redis cache when cfg names a reachable server, and an
// in-process cache otherwise.
func New(ctx context.Context, cfg Config) Cache {
	if cfg.RedisAddr != "" {
		rc, err := NewRedisCache(ctx, cfg)
		if err == nil {
			log.Printf("cache: using redis at %s", cfg.RedisAddr)
			return rc
		}
		log.Printf("cache: redis unavailable, falling back to memory: %v", err)
	}
	return NewMemoryCache(cfg.MaxEntries, cfg.TTL)
}

type memoryEntry struct {
	vec     []float32
	expires time.Time
}

// MemoryCache is a bounded in-process cache. When full, the oldest entry is
// evicted first.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string
	max     int
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		max:     maxEntries,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		return nil, false, nil
	}
	out := make([]float32, len(e.vec))
	copy(out, e.vec)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]float32, len(vec))
	copy(stored, vec)
	e := memoryEntry{vec: stored}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error {
	return nil
}

var errCorruptVector = errors.New("cached vector has invalid length")

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errCorruptVector, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
