package procfs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// DefaultRoot is the standard mount point of the proc filesystem.
const DefaultRoot = "/proc"

// ErrMalformed indicates a record was read but could not be fully parsed.
var ErrMalformed = errors.New("procfs: malformed record")

// MalformedError describes the first unparseable part of a record.
// It wraps ErrMalformed.
type MalformedError struct {
	// Path is the record that was being parsed.
	Path string
	// Offset is the byte offset of the offending entry.
	Offset int
	// Entry is the offending entry, if any.
	Entry string
}

func (e *MalformedError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("%s: %s at offset %d", ErrMalformed.Error(), e.Path, e.Offset)
	}
	return fmt.Sprintf("%s: %s at offset %d: %q", ErrMalformed.Error(), e.Path, e.Offset, e.Entry)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// FS reads process records below a proc mount.
type FS struct {
	root string
}

// New returns an FS rooted at root. An empty root means DefaultRoot.
func New(root string) FS {
	if root == "" {
		root = DefaultRoot
	}
	return FS{root: root}
}

// Root returns the directory the FS reads from.
func (p FS) Root() string {
	return p.root
}

// InitialEnviron returns the creation-time environment of pid.
//
// A MalformedError is returned together with the entries parsed before the
// malformed one; any other error comes with a nil slice.
func (p FS) InitialEnviron(pid int) ([]string, error) {
	path := p.path(pid, "environ")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env, err := ParseEnviron(data)
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			me.Path = path
		}
		return env, err
	}
	return env, nil
}

// ParentPID returns the parent pid recorded in /proc/<pid>/stat.
func (p FS) ParentPID(pid int) (int, error) {
	path := p.path(pid, "stat")
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	ppid, err := ParseStatPPID(data)
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			me.Path = path
		}
		return 0, err
	}
	return ppid, nil
}

func (p FS) path(pid int, name string) string {
	return filepath.Join(p.root, strconv.Itoa(pid), name)
}

// ParseEnviron splits a NUL-separated environ record into entries.
//
// Parsing ends at the first empty entry or at the end of data. An entry
// without '=' or with an empty key stops parsing: the entries before it are
// returned along with a *MalformedError.
func ParseEnviron(data []byte) ([]string, error) {
	env := make([]string, 0, bytes.Count(data, []byte{0}))
	offset := 0
	for offset < len(data) {
		end := bytes.IndexByte(data[offset:], 0)
		var raw []byte
		if end < 0 {
			raw = data[offset:]
		} else {
			raw = data[offset : offset+end]
		}
		if len(raw) == 0 {
			break
		}
		if eq := bytes.IndexByte(raw, '='); eq <= 0 {
			return env, &MalformedError{Offset: offset, Entry: string(raw)}
		}
		env = append(env, string(raw))
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return env, nil
}

// ParseStatPPID extracts the parent pid (field 4) from a stat record.
//
// The comm field (field 2) is parenthesized and may itself contain spaces
// and parentheses, so fields are counted from the last ')'.
func ParseStatPPID(data []byte) (int, error) {
	closing := bytes.LastIndexByte(data, ')')
	if closing < 0 {
		return 0, &MalformedError{Offset: 0}
	}
	fields := bytes.Fields(data[closing+1:])
	// fields[0] is the state, fields[1] the ppid.
	if len(fields) < 2 {
		return 0, &MalformedError{Offset: closing + 1}
	}
	ppid, err := strconv.Atoi(string(fields[1]))
	if err != nil || ppid < 0 {
		return 0, &MalformedError{Offset: closing + 1, Entry: string(fields[1])}
	}
	return ppid, nil
}

// IsGone reports whether err means the process no longer exists.
func IsGone(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ESRCH)
}

// IsPermission reports whether err means the record exists but may not be
// read by the caller.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
