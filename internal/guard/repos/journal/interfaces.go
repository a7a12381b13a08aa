// Package journal defines the blocked-event journal and the SMS message
// history consulted by the NOT_IN_SMS_HISTORY rule.
package journal

import (
	"context"
	"time"

	"github.com/haukened/callguard/internal/guard/domain"
)

// Journal records blocked events.
type Journal interface {
	RecordBlocked(entry domain.JournalEntry) error
	// List returns entries newest first; limit <= 0 returns all of them.
	List(limit int) ([]domain.JournalEntry, error)
	// Clear deletes every entry and returns how many were removed.
	Clear() (int, error)
}

// MessageHistory tracks numbers that have delivered messages.
type MessageHistory interface {
	RecordMessage(number string, at time.Time) error
	ContainsNumber(ctx context.Context, number string) domain.Presence
}

// Stats reports store counts.
type Stats struct {
	Entries uint64 // journal entries
	Senders uint64 // distinct numbers in the message history
}

// Store is the durable journal and message history.
type Store interface {
	Journal
	MessageHistory
	Stats() Stats
	Close() error
}
