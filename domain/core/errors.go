package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrAttemptNotFound    = fmt.Errorf("%w: attempt", ErrNotFound)
	ErrGapResultNotFound  = fmt.Errorf("%w: gap result", ErrNotFound)
	ErrOfferNotFound      = fmt.Errorf("%w: share offer", ErrNotFound)
	ErrValidationNotFound = fmt.Errorf("%w: validation", ErrNotFound)

	// State machine errors
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalStatus    = errors.New("attempt is in a terminal status")
	ErrNotRevealed       = errors.New("attempt has not been revealed")
	ErrAlreadyRevealed   = errors.New("attempt already revealed")
	ErrNotReady          = errors.New("both directions must be ready to reveal")

	// Offer errors
	ErrOfferClosed       = errors.New("share offer is no longer open")
	ErrOfferExpired      = errors.New("share offer expired")
	ErrAlreadyShared     = errors.New("context already shared for this direction")
	ErrRefinementsCapped = errors.New("refinement cycle limit reached")

	// Oracle errors
	ErrOracleUnavailable = errors.New("gap oracle unavailable")
	ErrOracleMalformed   = errors.New("gap oracle returned malformed result")
)

// NewNotFoundError builds a not-found error with resource context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewInvalidTransitionError builds a rejection for an edge outside the transition table
func NewInvalidTransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsTransitionError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTerminalStatus) ||
		errors.Is(err, ErrNotRevealed)
}

func IsOracleError(err error) bool {
	return errors.Is(err, ErrOracleUnavailable) ||
		errors.Is(err, ErrOracleMalformed)
}
