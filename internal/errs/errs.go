package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP codes with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnconfigured    = errors.New("unconfigured")
)

// Domain sentinels, each wrapping one kind.
var (
	ErrSessionNotFound    = fmt.Errorf("session %w", ErrNotFound)
	ErrSessionExists      = fmt.Errorf("session already exists: %w", ErrConflict)
	ErrSessionPaired      = fmt.Errorf("session already in a pk: %w", ErrConflict)
	ErrFallbackSession    = fmt.Errorf("fallback session cannot pk: %w", ErrInvalidArgument)
	ErrPairingNotFound    = fmt.Errorf("pk %w", ErrNotFound)
	ErrPairingNotPending  = fmt.Errorf("pk is not pending: %w", ErrInvalidState)
	ErrPairingNotActive   = fmt.Errorf("pk is not active: %w", ErrInvalidState)
	ErrNotParticipant     = fmt.Errorf("session is not a pk participant: %w", ErrInvalidArgument)
	ErrSignerUnconfigured = fmt.Errorf("credential signer: %w", ErrUnconfigured)
)

// Invalid builds an InvalidArgument error with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}
