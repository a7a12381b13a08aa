package contacts

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// StoreStats reports store counts and metadata.
// Values are read from the store in a cheap, read-only transaction.
type StoreStats struct {
	Contacts    uint64 // number of contact entries
	Numbers     uint64 // number of indexed numbers
	Version     uint64 // incremented on every committed write
	UpdatedUnix int64  // last write, unix seconds (0 if never written)
}

// RepoStats exposes repository-level counters and underlying store stats.
type RepoStats struct {
	Cache         CacheStats
	Store         StoreStats
	BloomNegative uint64 // lookups answered by the Bloom filter alone
}
