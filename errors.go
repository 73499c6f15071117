package execenv

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the execenv package.
var (
	// ErrAncestryUnavailable indicates no usable pre-bundle ancestor
	// environment could be read. Callers proceed with an empty base.
	ErrAncestryUnavailable = errors.New("execenv: ancestor environment unavailable")

	// ErrAllocation indicates an Environment could not hold the entries
	// requested of it.
	ErrAllocation = errors.New("execenv: environment allocation failed")

	// ErrMalformedRecord indicates an ancestor environment record was read
	// but only partially parsed.
	ErrMalformedRecord = errors.New("execenv: malformed ancestry record")

	// ErrNilEnvironment indicates a nil *Environment was passed.
	ErrNilEnvironment = errors.New("execenv: environment must not be nil")

	// ErrReleased indicates the Environment was already released.
	ErrReleased = errors.New("execenv: environment already released")

	// ErrNotOwned indicates Release was called on an ambient Environment.
	// This is a programming error in the caller.
	ErrNotOwned = errors.New("execenv: environment is not owned by the caller")

	// ErrConfigInvalid indicates the provided configuration failed validation.
	ErrConfigInvalid = errors.New("execenv: invalid configuration")

	// ErrNilCommand indicates a nil or empty *exec.Cmd was passed to Wrap.
	ErrNilCommand = errors.New("execenv: cmd must not be nil")
)

// AncestryError records which step of the ancestry walk failed.
// It matches ErrAncestryUnavailable with errors.Is and unwraps to the
// underlying read error.
type AncestryError struct {
	// PID is the process whose record could not be used.
	PID int
	// Op is the record being read ("environ", "stat") or "walk".
	Op string
	// Err is the underlying cause. It may be nil when the walk simply
	// reached the root of the process tree.
	Err error
}

func (e *AncestryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s pid %d", ErrAncestryUnavailable.Error(), e.Op, e.PID)
	}
	return fmt.Sprintf("%s: %s pid %d: %v", ErrAncestryUnavailable.Error(), e.Op, e.PID, e.Err)
}

func (e *AncestryError) Is(target error) bool {
	return target == ErrAncestryUnavailable
}

func (e *AncestryError) Unwrap() error {
	return e.Err
}

// AllocationError is returned when entries exceed an Environment's capacity.
// It wraps ErrAllocation.
type AllocationError struct {
	// Capacity is the number of entries the Environment was allocated for.
	Capacity int
	// Requested is the number of entries that were needed.
	Requested int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%s: need %d entries, capacity %d", ErrAllocation.Error(), e.Requested, e.Capacity)
}

func (e *AllocationError) Unwrap() error {
	return ErrAllocation
}
