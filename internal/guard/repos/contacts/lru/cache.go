package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/repos/contacts"
)

type entries = []domain.ContactEntry

// newLRU is a seam for tests.
var newLRU = func(size int, onEvict func(string, entries)) (*lru.Cache[string, entries], error) {
	return lru.NewWithEvict(size, onEvict)
}

// lookupCache is an LRU-backed contacts.LookupCache keyed by normalized
// number. It tracks hits, misses and evictions.
type lookupCache struct {
	lru       *lru.Cache[string, entries]
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache always misses; used when size <= 0.
type disabledCache struct{}

// New creates a LookupCache holding up to size numbers. If size <= 0 a
// disabled cache is returned.
func New(size int) (contacts.LookupCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}
	c := &lookupCache{capacity: size}
	// evictions include those caused by Purge
	cache, err := newLRU(size, func(string, entries) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return c, nil
}

// Get returns the cached lookup result. An empty result is a valid hit.
func (c *lookupCache) Get(number string) ([]domain.ContactEntry, bool) {
	if val, ok := c.lru.Get(number); ok {
		atomic.AddUint64(&c.hits, 1)
		return val, true
	}
	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

func (c *lookupCache) Put(number string, e []domain.ContactEntry) {
	c.lru.Add(number, e)
}

func (c *lookupCache) Len() int { return c.lru.Len() }

func (c *lookupCache) Purge() { c.lru.Purge() }

func (c *lookupCache) Stats() contacts.CacheStats {
	return contacts.CacheStats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		Evictions: atomic.LoadUint64(&c.evictions),
	}
}

func (disabledCache) Get(string) ([]domain.ContactEntry, bool) { return nil, false }
func (disabledCache) Put(string, []domain.ContactEntry)        {}
func (disabledCache) Len() int                                 { return 0 }
func (disabledCache) Purge()                                   {}
func (disabledCache) Stats() contacts.CacheStats               { return contacts.CacheStats{} }

var _ contacts.LookupCache = (*lookupCache)(nil)
var _ contacts.LookupCache = disabledCache{}
