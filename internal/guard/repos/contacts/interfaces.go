package contacts

import "github.com/haukened/callguard/internal/guard/domain"

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds Bloom filters sized for a capacity and target FP rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// LookupCache caches FindByNumber results by normalized number.
type LookupCache interface {
	Get(number string) ([]domain.ContactEntry, bool)
	Put(number string, entries []domain.ContactEntry)
	Len() int
	Purge()
	Stats() CacheStats
}

// Owner identifies the contact that currently holds a number.
type Owner struct {
	ContactID string
	List      domain.ListType
	Mode      domain.MatchMode
}

// Store is the durable contact table. Every write is committed before it
// returns; reads observe a consistent snapshot.
//
//   - FindByNumber resolves exact and partial matches for a normalized number
//   - Owners reports which of the given numbers are already held, and by whom
//   - Put inserts or replaces an entry together with its number index
//   - Numbers lists every stored number (used to rebuild Bloom filters)
type Store interface {
	Get(id string) (domain.ContactEntry, bool, error)
	FindByNumber(number string) ([]domain.ContactEntry, error)
	List(list domain.ListType) ([]domain.ContactEntry, error)
	Owners(numbers []string) (map[string]Owner, error)
	Put(entry domain.ContactEntry) error
	Delete(id string) (bool, error)
	Numbers() ([]string, error)
	Stats() StoreStats
	Close() error
}

// Repository is the contact store used by the filter engine and the CLI.
// It composes cache -> bloom -> store on reads and serializes writes.
type Repository interface {
	FindByNumber(number string) ([]domain.ContactEntry, error)
	FindByType(list domain.ListType, filter string) ([]domain.ContactEntry, error)
	Get(id string) (domain.ContactEntry, error)
	Add(list domain.ListType, name string, numbers []domain.ContactNumber) (domain.ContactEntry, error)
	MoveToOppositeList(id string) (domain.ContactEntry, error)
	Remove(id string) error
	RemoveMany(ids []string, list domain.ListType, filter string) (int, error)
	Stats() RepoStats
}
