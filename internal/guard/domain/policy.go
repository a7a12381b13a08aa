package domain

// Switch names one boolean policy setting.
type Switch string

const (
	SwitchBlockAll               Switch = "BLOCK_ALL"
	SwitchBlockPrivate           Switch = "BLOCK_PRIVATE"
	SwitchBlockFromBlackList     Switch = "BLOCK_FROM_BLACK_LIST"
	SwitchBlockNotFromContacts   Switch = "BLOCK_NOT_FROM_CONTACTS"
	SwitchBlockNotFromSMSHistory Switch = "BLOCK_NOT_FROM_SMS_HISTORY"

	// Dispatcher switches; the engine never reads these.
	SwitchWriteJournal              Switch = "WRITE_JOURNAL"
	SwitchBlockedStatusNotification Switch = "BLOCKED_STATUS_NOTIFICATION"
)

// PolicyConfiguration is a resolved, read-only view of the policy switches.
type PolicyConfiguration interface {
	Bool(name Switch) bool
}

// Policy is the map-backed PolicyConfiguration. Absent switches read as false.
type Policy map[Switch]bool

// Bool returns the switch value.
func (p Policy) Bool(name Switch) bool { return p[name] }

// With returns a copy of p with name set to v.
func (p Policy) With(name Switch, v bool) Policy {
	out := make(Policy, len(p)+1)
	for k, val := range p {
		out[k] = val
	}
	out[name] = v
	return out
}
