// Package addressbook adapts the device address book to the filter engine's
// AddressBook capability.
package addressbook

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/repos/contacts/parsers"
)

// FileBook is an address book loaded from a plain number list. Lines marked
// with "*" match by suffix, like partial contact numbers.
type FileBook struct {
	path   string
	logger log.Logger

	mu      sync.RWMutex
	exact   map[string]struct{}
	partial map[string]struct{}
}

// NewFileBook loads path. A nil logger discards parser logs.
func NewFileBook(path string, logger log.Logger) (*FileBook, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	b := &FileBook{path: path, logger: logger.Named("addressbook")}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload re-reads the file. On error the previous contents stay in place.
func (b *FileBook) Reload() error {
	f, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("open address book: %w", err)
	}
	defer f.Close()

	records, err := parsers.ParseNumberList(f, b.path, b.logger)
	if err != nil {
		return fmt.Errorf("parse address book: %w", err)
	}
	exact := make(map[string]struct{}, len(records))
	partial := make(map[string]struct{})
	for _, r := range records {
		if r.Number.Mode == domain.MatchPartial {
			partial[r.Number.Number] = struct{}{}
		} else {
			exact[r.Number.Number] = struct{}{}
		}
	}

	b.mu.Lock()
	b.exact, b.partial = exact, partial
	b.mu.Unlock()
	b.logger.Info(map[string]any{"path": b.path, "exact": len(exact), "partial": len(partial)}, "address_book_loaded")
	return nil
}

// Contains reports whether number is in the address book.
func (b *FileBook) Contains(ctx context.Context, number string) domain.Presence {
	if ctx.Err() != nil {
		return domain.PresenceUnknown
	}
	q := phone.Normalize(number)
	if q == "" {
		return domain.PresenceUnknown
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.exact[q]; ok {
		return domain.PresencePresent
	}
	for _, s := range phone.Suffixes(q) {
		if _, ok := b.partial[s]; ok {
			return domain.PresencePresent
		}
	}
	return domain.PresenceAbsent
}

// Len returns the number of loaded numbers.
func (b *FileBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.exact) + len(b.partial)
}

// Unavailable is the address book used when none is configured or access is
// not granted. It always answers PresenceUnknown.
type Unavailable struct{}

func (Unavailable) Contains(context.Context, string) domain.Presence { return domain.PresenceUnknown }
