package claim

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	ErrProvider = errors.New("provider failure")
)

// NotFoundError reports a lookup by identifier that matched nothing.
type NotFoundError struct {
	Kind string // "policy", "claim", "record", "provider"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a malformed input record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// ProviderError wraps a failure raised by a decision provider for one claim.
type ProviderError struct {
	Provider string
	ClaimID  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed on claim %s: %v", e.Provider, e.ClaimID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
