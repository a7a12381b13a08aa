package contacts

import "github.com/haukened/callguard/internal/guard/domain"

// nopCache is the LookupCache used when no cache is configured. It always
// misses, so every bloom-positive lookup reaches the store.
type nopCache struct{}

func (nopCache) Get(string) ([]domain.ContactEntry, bool) { return nil, false }
func (nopCache) Put(string, []domain.ContactEntry)        {}
func (nopCache) Len() int                                 { return 0 }
func (nopCache) Purge()                                   {}
func (nopCache) Stats() CacheStats                        { return CacheStats{} }

var _ LookupCache = nopCache{}
