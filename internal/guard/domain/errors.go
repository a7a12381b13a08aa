package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNumber is matched by every *DuplicateNumberError.
	ErrDuplicateNumber = errors.New("number already listed")
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("contact not found")
	// ErrInvalidContact wraps validation failures of contact input.
	ErrInvalidContact = errors.New("invalid contact")
)

// DuplicateNumberError reports that a number already belongs to the opposite
// list. Callers can offer to move the existing entry instead.
type DuplicateNumberError struct {
	Number       string
	ExistingID   string
	ExistingList ListType
}

func (e *DuplicateNumberError) Error() string {
	return fmt.Sprintf("number %s already in %s list (contact %s)", e.Number, e.ExistingList, e.ExistingID)
}

// Is lets errors.Is(err, ErrDuplicateNumber) succeed.
func (e *DuplicateNumberError) Is(target error) bool { return target == ErrDuplicateNumber }

// NotFoundError reports an unknown contact id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("contact %s not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
