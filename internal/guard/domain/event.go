package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventKind is the delivery channel of an incoming event.
type EventKind uint8

const (
	// EventSMS is an inbound text message.
	EventSMS EventKind = iota
	// EventCall is an inbound voice call.
	EventCall
)

// String returns a stable string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSMS:
		return "sms"
	case EventCall:
		return "call"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// ParseEventKind converts a string into an EventKind.
// Accepts: "sms", "call" (case-insensitive). Empty selects sms.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sms":
		return EventSMS, nil
	case "call":
		return EventCall, nil
	default:
		return 0, fmt.Errorf("unsupported event kind: %q", s)
	}
}

// Direction tells received events from ones the user sent.
type Direction uint8

const (
	// DirectionIn is an event received by the user; only these are screened.
	DirectionIn Direction = iota
	// DirectionOut is an event sent by the user; it only feeds the message history.
	DirectionOut
)

// String returns a stable string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// ParseDirection converts a string into a Direction.
// Accepts: "in", "out" (case-insensitive). Empty selects in.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in":
		return DirectionIn, nil
	case "out":
		return DirectionOut, nil
	default:
		return 0, fmt.Errorf("unsupported direction: %q", s)
	}
}

// IncomingEvent is one delivery from the telephony layer. It lives only for a
// single evaluation; persistence is the journal's job.
type IncomingEvent struct {
	Kind      EventKind
	Direction Direction
	Origin    string // raw remote number: the sender, or the recipient when outbound; empty when withheld
	Body      string // message text, empty for calls
	Timestamp time.Time
}

// NewSMSEvent is a convenience constructor for an SMS event.
func NewSMSEvent(origin, body string, at time.Time) IncomingEvent {
	return IncomingEvent{Kind: EventSMS, Origin: origin, Body: body, Timestamp: at}
}

// NewCallEvent is a convenience constructor for a call event.
func NewCallEvent(origin string, at time.Time) IncomingEvent {
	return IncomingEvent{Kind: EventCall, Origin: origin, Timestamp: at}
}

// NewOutboundSMSEvent is a convenience constructor for a message the user sent to a number.
func NewOutboundSMSEvent(to string, at time.Time) IncomingEvent {
	return IncomingEvent{Kind: EventSMS, Direction: DirectionOut, Origin: to, Timestamp: at}
}
