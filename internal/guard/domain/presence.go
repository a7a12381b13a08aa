package domain

// Presence is the tri-state answer of an optional capability such as the
// address book. Unknown means the capability could not answer (no permission,
// not configured, timed out) and the dependent rule is skipped.
type Presence uint8

const (
	PresenceUnknown Presence = iota
	PresenceAbsent
	PresencePresent
)

// String returns a stable string representation of the presence.
func (p Presence) String() string {
	switch p {
	case PresenceAbsent:
		return "absent"
	case PresencePresent:
		return "present"
	default:
		return "unknown"
	}
}

// PresenceOf converts a definite answer into a Presence.
func PresenceOf(found bool) Presence {
	if found {
		return PresencePresent
	}
	return PresenceAbsent
}
