package domain

import "fmt"

// PrivateNumberName is the display name attributed to withheld origins.
const PrivateNumberName = "Private number"

// Reason names the rule that produced a verdict.
type Reason uint8

const (
	ReasonAllowed Reason = iota
	ReasonPrivateNumber
	ReasonBlockAll
	ReasonBlackList
	ReasonNotInContacts
	ReasonNotInSMSHistory
)

// String returns the stable upper-case rule name.
func (r Reason) String() string {
	switch r {
	case ReasonAllowed:
		return "ALLOWED"
	case ReasonPrivateNumber:
		return "PRIVATE_NUMBER"
	case ReasonBlockAll:
		return "BLOCK_ALL"
	case ReasonBlackList:
		return "BLACK_LIST"
	case ReasonNotInContacts:
		return "NOT_IN_CONTACTS"
	case ReasonNotInSMSHistory:
		return "NOT_IN_SMS_HISTORY"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}

// Verdict is the outcome of evaluating one event.
// Pure value type, no external dependencies.
type Verdict struct {
	Blocked     bool
	MatchedName string // empty when allowed
	Reason      Reason
	Number      string // normalized origin; empty for private or unnormalizable origins
}

// IsBlocked is a convenience accessor.
func (v Verdict) IsBlocked() bool { return v.Blocked }

// Allow returns an allowed verdict for the normalized number.
func Allow(number string) Verdict {
	return Verdict{Blocked: false, Reason: ReasonAllowed, Number: number}
}

// Block returns a blocked verdict attributed to name.
func Block(reason Reason, name, number string) Verdict {
	return Verdict{Blocked: true, Reason: reason, MatchedName: name, Number: number}
}
