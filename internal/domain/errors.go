package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no session matches the given PIN.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a participant record is missing.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrContributionNotFound is returned when a vote targets a missing row.
	ErrContributionNotFound = errors.New("contribution not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")

	// ErrValidation marks caller mistakes: missing fields, malformed IDs,
	// empty submissions. Wrap with Validationf.
	ErrValidation = errors.New("validation error")
)

// Validationf builds an error in the validation class.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrContributionNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrOptionNotFound)
}

// IsValidation reports whether err belongs to the validation class.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
