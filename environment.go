package execenv

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/zhangyunhao116/execenv/internal/envutil"
	"github.com/zhangyunhao116/execenv/internal/procfs"
)

// Environment is an ordered list of KEY=VALUE entries, the Go form of a
// NULL-terminated envp array. The terminator is implicit: Entries never
// contains it and Block appends it when the OS layout is needed.
//
// Every Environment holds its own copy of its entries. An Environment is
// either owned, in which case exactly one party must call Release on it, or
// ambient (see Ambient), in which case Release is a programming error.
//
// An Environment is not safe for concurrent mutation.
type Environment struct {
	entries  []string
	capacity int
	owned    bool
	released bool
}

// Allocate reserves an owned Environment with room for capacity entries.
// The Environment starts empty.
func Allocate(capacity int) (*Environment, error) {
	if capacity < 0 {
		return nil, &AllocationError{Capacity: capacity, Requested: 0}
	}
	return &Environment{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
		owned:    true,
	}, nil
}

// NewEnvironment returns an owned Environment holding entries, in order.
func NewEnvironment(entries ...string) (*Environment, error) {
	env, err := Allocate(len(entries))
	if err != nil {
		return nil, err
	}
	if err := env.Append(entries...); err != nil {
		return nil, err
	}
	return env, nil
}

// Ambient wraps the calling process's own environment (typically
// os.Environ()). The result must not be released: the engine never owns
// the ambient environment.
func Ambient(entries []string) *Environment {
	return &Environment{
		entries:  append([]string(nil), entries...),
		capacity: len(entries),
	}
}

// Len counts the entries of env up to the terminator.
func Len(env *Environment) (int, error) {
	if env == nil {
		return 0, ErrNilEnvironment
	}
	if env.released {
		return 0, ErrReleased
	}
	return len(env.entries), nil
}

// Append adds entries after the existing ones. It fails with an
// *AllocationError, leaving the Environment unchanged, if the entries do
// not fit in the capacity given to Allocate.
func (e *Environment) Append(entries ...string) error {
	if e == nil {
		return ErrNilEnvironment
	}
	if e.released {
		return ErrReleased
	}
	if need := len(e.entries) + len(entries); need > e.capacity {
		return &AllocationError{Capacity: e.capacity, Requested: need}
	}
	e.entries = append(e.entries, entries...)
	return nil
}

// Entries returns a copy of the entries. The result is non-nil for a live
// Environment, so it can be assigned to exec.Cmd.Env without inheriting the
// process environment. A nil or released Environment yields nil.
func (e *Environment) Entries() []string {
	if e == nil || e.released {
		return nil
	}
	return append([]string{}, e.entries...)
}

// Get returns the value of the first entry with the given key.
func (e *Environment) Get(key string) (string, bool) {
	if e == nil || e.released {
		return "", false
	}
	return envutil.GetEnv(e.entries, key)
}

// Has reports whether an entry with the given key exists.
func (e *Environment) Has(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// Cap returns the number of entries the Environment can hold.
func (e *Environment) Cap() int {
	if e == nil {
		return 0
	}
	return e.capacity
}

// Owned reports whether the caller is responsible for releasing e.
func (e *Environment) Owned() bool {
	return e != nil && e.owned
}

// Duplicate returns an owned copy of e that shares no storage with it.
// Duplicating an ambient Environment is the way to obtain an owned one.
func (e *Environment) Duplicate() (*Environment, error) {
	if e == nil {
		return nil, ErrNilEnvironment
	}
	if e.released {
		return nil, ErrReleased
	}
	return NewEnvironment(e.entries...)
}

// Release drops the entries of an owned Environment. It must be called
// exactly once. A second call returns ErrReleased; calling it on an ambient
// Environment returns ErrNotOwned and leaves it intact.
func (e *Environment) Release() error {
	if e == nil {
		return ErrNilEnvironment
	}
	if !e.owned {
		return ErrNotOwned
	}
	if e.released {
		return ErrReleased
	}
	clear(e.entries)
	e.entries = nil
	e.released = true
	return nil
}

// Block renders the OS layout: every entry followed by a NUL byte, then
// the terminating NUL. An empty Environment renders as a single NUL.
func (e *Environment) Block() []byte {
	var b bytes.Buffer
	for _, entry := range e.Entries() {
		b.WriteString(entry)
		b.WriteByte(0)
	}
	b.WriteByte(0)
	return b.Bytes()
}

// ParseBlock parses the layout produced by Block (and by the kernel's
// per-process environ records) into an owned Environment. On a malformed
// entry the entries before it are returned together with an error wrapping
// ErrMalformedRecord.
func ParseBlock(data []byte) (*Environment, error) {
	entries, perr := procfs.ParseEnviron(data)
	env, err := NewEnvironment(entries...)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		return env, fmt.Errorf("%w: %w", ErrMalformedRecord, perr)
	}
	return env, nil
}

// String returns the entries in a single line, for logging.
func (e *Environment) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.released {
		return "<released>"
	}
	return fmt.Sprintf("[%s]", strings.Join(e.entries, " "))
}
