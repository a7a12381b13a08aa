package domain

import "time"

// JournalEntry is the persisted record of a blocked event.
type JournalEntry struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Number string    `json:"number"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
	Body   string    `json:"body,omitempty"`
	Time   time.Time `json:"time"`
}

// NewJournalEntry builds the journal record for a blocked event.
// The raw origin is kept when the verdict carries no normalized number.
func NewJournalEntry(id string, ev IncomingEvent, v Verdict) JournalEntry {
	number := v.Number
	if number == "" {
		number = ev.Origin
	}
	return JournalEntry{
		ID:     id,
		Kind:   ev.Kind.String(),
		Number: number,
		Name:   v.MatchedName,
		Reason: v.Reason.String(),
		Body:   ev.Body,
		Time:   ev.Timestamp,
	}
}
