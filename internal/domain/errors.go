package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMismatch signals persisted state that disagrees with the live configuration.
	// Fatal: the run never repairs it.
	ErrConfigMismatch = errors.New("config mismatch")
	// ErrRandomness signals that the generator could not obtain entropy.
	ErrRandomness = errors.New("randomness failure")
	// ErrTransientIO signals a storage operation that failed after all retries.
	ErrTransientIO = errors.New("transient io failure")
	// ErrMalformedRecord signals a single unusable record inside a batch or hit log.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrWorkNotFound signals a lookup for a work that is not loaded.
	ErrWorkNotFound = errors.New("work not found")
	// ErrInvalidWork signals a work that failed validation.
	ErrInvalidWork = errors.New("invalid work")
	// ErrStopped signals a run that ended because a stop was requested.
	ErrStopped = errors.New("stopped")
)

// MismatchError wraps ErrConfigMismatch with what disagreed.
type MismatchError struct {
	What      string
	Persisted string
	Live      string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s: persisted %s, live %s", ErrConfigMismatch.Error(), e.What, e.Persisted, e.Live)
}

func (e *MismatchError) Unwrap() error { return ErrConfigMismatch }

// NewMismatch creates a config mismatch error.
func NewMismatch(what string, persisted, live any) error {
	return &MismatchError{What: what, Persisted: fmt.Sprint(persisted), Live: fmt.Sprint(live)}
}
