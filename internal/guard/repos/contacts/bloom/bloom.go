// Package bloom provides the contact repository's negative-lookup filter.
package bloom

import (
	"math"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/callguard/internal/guard/repos/contacts"
)

const defaultFPRate = 0.01

type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() contacts.BloomFactory { return factory{} }

// New constructs a filter sized for capacity numbers at the target
// false-positive rate.
func (factory) New(capacity uint64, fpRate float64) contacts.BloomFilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

// size applies the standard formulas, clamped to at least 1:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
func size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}

// filter wraps a bits-and-blooms filter; Add takes the write lock and
// MightContain the read lock, since the bitset is not safe for concurrent use.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}
