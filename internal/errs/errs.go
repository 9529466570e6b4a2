// Package errs defines the error kinds shared by every bop subsystem.
// Each error carries a kind, a human message, and the offending path where
// one applies, so callers can branch on the kind without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Other Kind = iota
	SysfsRead
	SysfsWrite
	Parse
	Detection
	NotRoot
	ConflictingService
	State
	Bootloader
)

func (k Kind) String() string {
	switch k {
	case SysfsRead:
		return "sysfs read"
	case SysfsWrite:
		return "sysfs write"
	case Parse:
		return "parse"
	case Detection:
		return "detection"
	case NotRoot:
		return "not root"
	case ConflictingService:
		return "conflicting service"
	case State:
		return "state"
	case Bootloader:
		return "bootloader"
	default:
		return "error"
	}
}

// Error is a classified bop error.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Path != "" && e.Msg != "":
		s = fmt.Sprintf("%s failed: %s: %s", e.Kind, e.Path, e.Msg)
	case e.Path != "":
		s = fmt.Sprintf("%s failed: %s", e.Kind, e.Path)
	case e.Msg != "":
		s = e.Msg
	default:
		s = e.Kind.String() + " failed"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind without a path.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Path returns an error of the given kind about path, wrapping err.
func Path(kind Kind, path string, err error) error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Wrap returns an error of the given kind with a message, wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ParseError reports malformed content at path.
func ParseError(path, detail string) error {
	return &Error{Kind: Parse, Path: path, Msg: detail}
}

// RequireRoot reports that operation needs UID 0.
func RequireRoot(operation string) error {
	return &Error{Kind: NotRoot, Msg: fmt.Sprintf("root privileges required for %s (try sudo)", operation)}
}

// KindOf returns the kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
