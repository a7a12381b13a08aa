package filter

import (
	"context"

	"github.com/haukened/callguard/internal/guard/domain"
)

// ContactFinder resolves a normalized number to the contact entries, from
// either list, holding a matching number.
type ContactFinder interface {
	FindByNumber(number string) ([]domain.ContactEntry, error)
}

// AddressBook answers whether a number is a known personal contact.
// PresenceUnknown means the capability could not answer.
type AddressBook interface {
	Contains(ctx context.Context, number string) domain.Presence
}

// MessageHistory answers whether a number has messaged before.
type MessageHistory interface {
	ContainsNumber(ctx context.Context, number string) domain.Presence
}
