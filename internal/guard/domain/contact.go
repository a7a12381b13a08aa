package domain

import (
	"fmt"
	"strings"
	"time"
)

// ListType classifies a contact. BLACK and WHITE are mutually exclusive.
type ListType uint8

const (
	// ListBlack holds numbers whose events are blocked by default policy.
	ListBlack ListType = iota + 1
	// ListWhite holds numbers exempted from every blocking rule.
	ListWhite
)

// String returns a stable string representation of the list type.
func (l ListType) String() string {
	switch l {
	case ListBlack:
		return "black"
	case ListWhite:
		return "white"
	default:
		return fmt.Sprintf("ListType(%d)", l)
	}
}

// Opposite returns the other list.
func (l ListType) Opposite() ListType {
	if l == ListBlack {
		return ListWhite
	}
	return ListBlack
}

// Valid reports whether l is BLACK or WHITE.
func (l ListType) Valid() bool { return l == ListBlack || l == ListWhite }

// ParseListType converts a string into a ListType.
// Accepts: "black", "white" (case-insensitive).
func ParseListType(s string) (ListType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black":
		return ListBlack, nil
	case "white":
		return ListWhite, nil
	default:
		return 0, fmt.Errorf("%w: unsupported list type %q", ErrInvalidContact, s)
	}
}

// MatchMode defines how a stored number matches an incoming one.
//
// exact   - the incoming normalized number equals the stored number
// partial - the incoming normalized number ends with the stored number
type MatchMode uint8

const (
	// MatchExact matches only the identical normalized number.
	MatchExact MatchMode = iota
	// MatchPartial matches any number sharing the stored suffix, tolerating
	// carrier and country prefixes.
	MatchPartial
)

// String returns a stable string representation of the match mode.
func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPartial:
		return "partial"
	default:
		return fmt.Sprintf("MatchMode(%d)", m)
	}
}

// ContactNumber is one normalized number of a contact together with its match mode.
type ContactNumber struct {
	Number string
	Mode   MatchMode
}

// Exact is a convenience constructor for an exact-match number.
func Exact(number string) ContactNumber { return ContactNumber{Number: number, Mode: MatchExact} }

// Partial is a convenience constructor for a suffix-match number.
func Partial(number string) ContactNumber { return ContactNumber{Number: number, Mode: MatchPartial} }

// Matches reports whether the normalized query is matched by n.
func (n ContactNumber) Matches(query string) bool {
	if n.Number == "" || query == "" {
		return false
	}
	switch n.Mode {
	case MatchExact:
		return query == n.Number
	case MatchPartial:
		return strings.HasSuffix(query, n.Number)
	default:
		return false
	}
}

// Validate checks the number is non-empty and the mode is supported.
// The number is expected to be normalized already.
func (n ContactNumber) Validate() error {
	if n.Number == "" {
		return fmt.Errorf("%w: number must not be empty", ErrInvalidContact)
	}
	switch n.Mode {
	case MatchExact, MatchPartial:
	default:
		return fmt.Errorf("%w: unsupported match mode %d", ErrInvalidContact, n.Mode)
	}
	return nil
}

// ContactEntry is a named group of numbers belonging to exactly one list.
type ContactEntry struct {
	ID        string
	Name      string
	List      ListType
	Numbers   []ContactNumber
	CreatedAt time.Time
}

// Validate checks the entry for required fields and supported values.
func (e ContactEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidContact)
	}
	if !e.List.Valid() {
		return fmt.Errorf("%w: unsupported list type %d", ErrInvalidContact, e.List)
	}
	if len(e.Numbers) == 0 {
		return fmt.Errorf("%w: at least one number is required", ErrInvalidContact)
	}
	for _, n := range e.Numbers {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DisplayName returns the entry name, falling back to its first number.
func (e ContactEntry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if len(e.Numbers) > 0 {
		return e.Numbers[0].Number
	}
	return ""
}

// ContainsText reports whether the name or any number contains filter,
// case-insensitively. An empty filter matches everything.
func (e ContactEntry) ContainsText(filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	if strings.Contains(strings.ToLower(e.Name), filter) {
		return true
	}
	for _, n := range e.Numbers {
		if strings.Contains(n.Number, filter) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't mutate cached entries.
func (e ContactEntry) Clone() ContactEntry {
	c := e
	c.Numbers = append([]ContactNumber(nil), e.Numbers...)
	return c
}

// FindByList returns the first entry of the given list.
func FindByList(entries []ContactEntry, list ListType) (ContactEntry, bool) {
	for _, e := range entries {
		if e.List == list {
			return e, true
		}
	}
	return ContactEntry{}, false
}
