package contacts

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/haukened/callguard/internal/guard/common/clock"
	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/metrics"
)

// minBloomCapacity keeps tiny lists from producing degenerate filters that
// would need a rebuild on almost every add.
const minBloomCapacity = 1024

// Options configures NewRepository. Store is required; a nil Cache disables
// caching and a nil Factory disables the Bloom pre-check.
type Options struct {
	Store   Store
	Cache   LookupCache
	Factory BloomFactory
	FPRate  float64
	Clock   clock.Clock
	Logger  log.Logger
	NewID   func() string
}

// repository implements Repository by composing a Store, a Bloom filter (via
// factory), and a LookupCache. Reads apply cache -> bloom -> store; writes are
// serialized by writeMu and followed by a cache purge under mu.
type repository struct {
	writeMu sync.Mutex

	mu    sync.RWMutex // guards bloom, cache and gen
	bloom BloomFilter
	cache LookupCache
	gen   uint64

	// touched only by writers, under writeMu
	bloomCap uint64
	bloomN   uint64

	store    Store
	factory  BloomFactory
	fpRate   float64
	clock    clock.Clock
	logger   log.Logger
	newID    func() string
	bloomNeg uint64
}

// NewRepository constructs a Repository and seeds the Bloom filter from the
// numbers already in the store.
func NewRepository(opts Options) (Repository, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("contacts repository requires a store")
	}
	r := &repository{
		store:   opts.Store,
		cache:   opts.Cache,
		factory: opts.Factory,
		fpRate:  opts.FPRate,
		clock:   opts.Clock,
		logger:  opts.Logger,
		newID:   opts.NewID,
	}
	if r.cache == nil {
		r.cache = nopCache{}
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.logger == nil {
		r.logger = log.NewNoopLogger()
	}
	r.logger = r.logger.Named("contacts")
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.factory != nil {
		numbers, err := r.store.Numbers()
		if err != nil {
			return nil, fmt.Errorf("seed bloom filter: %w", err)
		}
		r.bloom, r.bloomCap = r.buildBloom(numbers)
		r.bloomN = uint64(len(numbers))
	}
	return r, nil
}

// FindByNumber returns every entry, from either list, with a number matching
// the normalized query.
func (r *repository) FindByNumber(number string) ([]domain.ContactEntry, error) {
	q := phone.Normalize(number)
	if q == "" {
		return nil, nil
	}
	// 1) checkBloom: early-return if definitively negative
	if !r.checkBloom(q) {
		atomic.AddUint64(&r.bloomNeg, 1)
		metrics.ContactLookups.WithLabelValues(metrics.PathBloomNegative).Inc()
		return nil, nil
	}
	// 2) checkCache
	if entries, ok := r.checkCache(q); ok {
		metrics.ContactLookups.WithLabelValues(metrics.PathCacheHit).Inc()
		return cloneEntries(entries), nil
	}
	// 3) checkStore
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()
	entries, err := r.store.FindByNumber(q)
	if err != nil {
		metrics.ContactLookups.WithLabelValues(metrics.PathStoreError).Inc()
		return nil, fmt.Errorf("find by number: %w", err)
	}
	metrics.ContactLookups.WithLabelValues(metrics.PathStore).Inc()
	sortEntries(entries)
	// 4) updateCache
	r.updateCache(q, gen, entries)
	return cloneEntries(entries), nil
}

// FindByType lists the entries of one list whose name or numbers contain filter.
func (r *repository) FindByType(list domain.ListType, filter string) ([]domain.ContactEntry, error) {
	if !list.Valid() {
		return nil, fmt.Errorf("%w: unsupported list type %d", domain.ErrInvalidContact, list)
	}
	all, err := r.store.List(list)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", list, err)
	}
	out := make([]domain.ContactEntry, 0, len(all))
	for _, e := range all {
		if e.ContainsText(filter) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// Get returns the entry with the given id.
func (r *repository) Get(id string) (domain.ContactEntry, error) {
	e, ok, err := r.store.Get(id)
	if err != nil {
		return domain.ContactEntry{}, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return domain.ContactEntry{}, &domain.NotFoundError{ID: id}
	}
	return e, nil
}

// Add creates an entry in list. It fails with *domain.DuplicateNumberError when
// a number belongs to the opposite list, and writes nothing in that case.
// Numbers already in the same list are skipped; when none remain the existing
// owner of the first number is returned unchanged.
func (r *repository) Add(list domain.ListType, name string, numbers []domain.ContactNumber) (domain.ContactEntry, error) {
	if !list.Valid() {
		return domain.ContactEntry{}, fmt.Errorf("%w: unsupported list type %d", domain.ErrInvalidContact, list)
	}
	nums, err := normalizeNumbers(numbers)
	if err != nil {
		return domain.ContactEntry{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	keys := make([]string, len(nums))
	for i, n := range nums {
		keys[i] = n.Number
	}
	owners, err := r.store.Owners(keys)
	if err != nil {
		return domain.ContactEntry{}, fmt.Errorf("check owners: %w", err)
	}

	fresh := make([]domain.ContactNumber, 0, len(nums))
	existingID := ""
	for _, n := range nums {
		o, held := owners[n.Number]
		if !held {
			fresh = append(fresh, n)
			continue
		}
		if o.List != list {
			return domain.ContactEntry{}, &domain.DuplicateNumberError{Number: n.Number, ExistingID: o.ContactID, ExistingList: o.List}
		}
		if existingID == "" {
			existingID = o.ContactID
		}
	}

	if len(fresh) == 0 {
		r.logger.Debug(map[string]any{"list": list.String(), "contact": existingID}, "add_idempotent")
		return r.Get(existingID)
	}

	entry := domain.ContactEntry{
		ID:        r.newID(),
		Name:      strings.TrimSpace(name),
		List:      list,
		Numbers:   fresh,
		CreatedAt: r.clock.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return domain.ContactEntry{}, err
	}
	if err := r.store.Put(entry); err != nil {
		return domain.ContactEntry{}, fmt.Errorf("put %s: %w", entry.ID, err)
	}
	r.afterWrite(fresh, false)
	metrics.ContactMutations.WithLabelValues("add").Inc()
	r.logger.Info(map[string]any{
		"contact": entry.ID,
		"list":    list.String(),
		"numbers": len(fresh),
	}, "contact_added")
	return entry.Clone(), nil
}

// MoveToOppositeList flips the entry's list in one committed write.
func (r *repository) MoveToOppositeList(id string) (domain.ContactEntry, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	e, err := r.Get(id)
	if err != nil {
		return domain.ContactEntry{}, err
	}
	from := e.List
	e.List = from.Opposite()
	if err := r.store.Put(e); err != nil {
		return domain.ContactEntry{}, fmt.Errorf("put %s: %w", id, err)
	}
	r.afterWrite(nil, false)
	metrics.ContactMutations.WithLabelValues("move").Inc()
	r.logger.Info(map[string]any{"contact": id, "from": from.String(), "to": e.List.String()}, "contact_moved")
	return e.Clone(), nil
}

// Remove deletes one entry.
func (r *repository) Remove(id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	ok, err := r.store.Delete(id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if !ok {
		return &domain.NotFoundError{ID: id}
	}
	r.afterWrite(nil, true)
	metrics.ContactMutations.WithLabelValues("remove").Inc()
	r.logger.Info(map[string]any{"contact": id}, "contact_removed")
	return nil
}

// RemoveMany deletes the entries of list matching filter. When ids is
// non-empty only those ids are candidates; ids that are unknown or belong to
// the other list are ignored. It returns how many entries were removed.
func (r *repository) RemoveMany(ids []string, list domain.ListType, filter string) (int, error) {
	if !list.Valid() {
		return 0, fmt.Errorf("%w: unsupported list type %d", domain.ErrInvalidContact, list)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	all, err := r.store.List(list)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", list, err)
	}
	var only map[string]struct{}
	if len(ids) > 0 {
		only = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			only[id] = struct{}{}
		}
	}

	removed := 0
	var firstErr error
	for _, e := range all {
		if only != nil {
			if _, ok := only[e.ID]; !ok {
				continue
			}
		}
		if !e.ContainsText(filter) {
			continue
		}
		ok, err := r.store.Delete(e.ID)
		if err != nil {
			firstErr = fmt.Errorf("delete %s: %w", e.ID, err)
			break
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		r.afterWrite(nil, true)
		metrics.ContactMutations.WithLabelValues("remove").Add(float64(removed))
		r.logger.Info(map[string]any{"list": list.String(), "removed": removed}, "contacts_removed")
	}
	return removed, firstErr
}

// Stats returns cache counters and the underlying store stats.
func (r *repository) Stats() RepoStats {
	r.mu.RLock()
	cs := r.cache.Stats()
	r.mu.RUnlock()
	return RepoStats{
		Cache:         cs,
		Store:         r.store.Stats(),
		BloomNegative: atomic.LoadUint64(&r.bloomNeg),
	}
}

// checkBloom returns true if the store must be consulted (maybe-positive), or
// false when no stored number can match. Every suffix of the query is a
// candidate because partial numbers match by suffix. Without a filter it
// returns true.
func (r *repository) checkBloom(q string) bool {
	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf == nil {
		return true
	}
	for _, s := range phone.Suffixes(q) {
		if bf.MightContain([]byte(s)) {
			return true
		}
	}
	return false
}

// checkCache returns a cached result when present.
func (r *repository) checkCache(q string) ([]domain.ContactEntry, bool) {
	r.mu.RLock()
	entries, ok := r.cache.Get(q)
	r.mu.RUnlock()
	return entries, ok
}

// updateCache stores the result unless a write happened since gen was read;
// a stale result must never outlive the purge that followed the write.
func (r *repository) updateCache(q string, gen uint64, entries []domain.ContactEntry) {
	r.mu.Lock()
	if r.gen == gen {
		r.cache.Put(q, cloneEntries(entries))
	}
	r.mu.Unlock()
}

// afterWrite publishes a committed write: new numbers reach the Bloom filter
// (or the filter is rebuilt), the generation advances and the cache is purged.
// Callers hold writeMu.
func (r *repository) afterWrite(added []domain.ContactNumber, rebuild bool) {
	if r.factory != nil && !rebuild && r.bloomN+uint64(len(added)) > r.bloomCap {
		rebuild = true
	}

	var fresh BloomFilter
	var freshCap, freshN uint64
	bloomOff := false
	if r.factory != nil && rebuild {
		numbers, err := r.store.Numbers()
		if err != nil {
			// without a trustworthy filter every lookup goes to the store
			r.logger.Warn(map[string]any{"error": err}, "bloom_rebuild_failed")
			bloomOff = true
		} else {
			fresh, freshCap = r.buildBloom(numbers)
			freshN = uint64(len(numbers))
		}
	}

	r.mu.Lock()
	switch {
	case r.factory == nil:
	case bloomOff:
		r.bloom = nil
	case rebuild:
		r.bloom, r.bloomCap, r.bloomN = fresh, freshCap, freshN
	case r.bloom != nil:
		for _, n := range added {
			r.bloom.Add([]byte(n.Number))
		}
		r.bloomN += uint64(len(added))
	}
	r.gen++
	r.cache.Purge()
	r.mu.Unlock()
}

// buildBloom sizes a filter with headroom for future adds and fills it.
func (r *repository) buildBloom(numbers []string) (BloomFilter, uint64) {
	capacity := uint64(len(numbers)) * 2
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}
	bf := r.factory.New(capacity, r.fpRate)
	for _, n := range numbers {
		bf.Add([]byte(n))
	}
	return bf, capacity
}

// normalizeNumbers normalizes, validates and de-duplicates input numbers,
// preserving first-seen order.
func normalizeNumbers(numbers []domain.ContactNumber) ([]domain.ContactNumber, error) {
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%w: at least one number is required", domain.ErrInvalidContact)
	}
	seen := make(map[string]struct{}, len(numbers))
	out := make([]domain.ContactNumber, 0, len(numbers))
	for _, n := range numbers {
		raw := n.Number
		n.Number = phone.Normalize(raw)
		if n.Number == "" {
			return nil, fmt.Errorf("%w: %q is not a phone number", domain.ErrInvalidContact, raw)
		}
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[n.Number]; dup {
			continue
		}
		seen[n.Number] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// sortEntries orders entries by creation time, then id.
func sortEntries(entries []domain.ContactEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func cloneEntries(entries []domain.ContactEntry) []domain.ContactEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.ContactEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

var _ Repository = (*repository)(nil)
