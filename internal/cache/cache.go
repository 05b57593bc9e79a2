// Package cache is the read-through cache shared by the resume and question services.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/Bill1907/prepup/internal/shared/metrics"
)

// Key addresses a cached value. ID may name a single record or a collection
// (for example "list:active").
type Key struct {
	Entity string
	Owner  string
	ID     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Entity, k.Owner, k.ID)
}

type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(key Key, dst any) (bool, error)
	Set(key Key, value any) error
	Invalidate(key Key)
	// InvalidateOwner drops every key stored for entity and owner.
	InvalidateOwner(entity, owner string)
}

type ownerKey struct {
	entity string
	owner  string
}

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is a bounded LRU with per-entry TTL. Values are stored JSON encoded.
type Memory struct {
	mu      sync.Mutex
	lru     *lru.Cache
	byOwner map[ownerKey]map[Key]struct{}
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Memory)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(maxEntries int, ttl time.Duration, opts ...Option) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	m := &Memory{
		lru:     lru.New(maxEntries),
		byOwner: make(map[ownerKey]map[Key]struct{}),
		ttl:     ttl,
		now:     time.Now,
	}
	m.lru.OnEvicted = func(k lru.Key, _ any) {
		if key, ok := k.(Key); ok {
			m.unindex(key)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(key Key, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.lru.Get(key)
	var e entry
	if ok {
		e = raw.(entry)
		if m.ttl > 0 && !m.now().Before(e.expires) {
			m.lru.Remove(key)
			ok = false
		}
	}
	m.mu.Unlock()

	metrics.IncCacheLookup(key.Entity, ok)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(key Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, entry{data: data, expires: m.now().Add(m.ttl)})
	ok := ownerKey{entity: key.Entity, owner: key.Owner}
	keys := m.byOwner[ok]
	if keys == nil {
		keys = make(map[Key]struct{})
		m.byOwner[ok] = keys
	}
	keys[key] = struct{}{}
	return nil
}

func (m *Memory) Invalidate(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
}

func (m *Memory) InvalidateOwner(entity, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.byOwner[ownerKey{entity: entity, owner: owner}]
	for key := range keys {
		m.lru.Remove(key)
	}
}

// Len returns the number of live entries, expired ones included until touched.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// unindex runs from the LRU eviction callback with m.mu held.
func (m *Memory) unindex(key Key) {
	ok := ownerKey{entity: key.Entity, owner: key.Owner}
	keys := m.byOwner[ok]
	delete(keys, key)
	if len(keys) == 0 {
		delete(m.byOwner, ok)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(Key, any) (bool, error)     { return false, nil }
func (Nop) Set(Key, any) error             { return nil }
func (Nop) Invalidate(Key)                 {}
func (Nop) InvalidateOwner(string, string) {}

var (
	_ Cache = (*Memory)(nil)
	_ Cache = Nop{}
)
