// Package icnerr defines the structured error kinds shared across the
// dataplane and transport packages (spec §7).
package icnerr

import "errors"

// Kind identifies one of the error categories used across the core.
type Kind int

const (
	_ Kind = iota
	InvalidArgument
	OutOfMemory
	NotFound
	Exists
	CapacityExceeded
	InvalidPacket
	NoRoute
	Timeout
	LinkDown
	Corruption
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case OutOfMemory:
		return "out_of_memory"
	case NotFound:
		return "not_found"
	case Exists:
		return "exists"
	case CapacityExceeded:
		return "capacity_exceeded"
	case InvalidPacket:
		return "invalid_packet"
	case NoRoute:
		return "no_route"
	case Timeout:
		return "timeout"
	case LinkDown:
		return "link_down"
	case Corruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying one of the Kind values plus a message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can use errors.Is(err, icnerr.New(icnerr.NotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

// Wrap constructs an *Error of the given kind, wrapping err.
func Wrap(k Kind, msg string, err error) *Error { return &Error{Kind: k, Msg: msg, Err: err} }

// Sentinels for errors.Is comparisons without allocating a message.
var (
	ErrInvalidArgument  = New(InvalidArgument, "")
	ErrOutOfMemory      = New(OutOfMemory, "")
	ErrNotFound         = New(NotFound, "")
	ErrExists           = New(Exists, "")
	ErrCapacityExceeded = New(CapacityExceeded, "")
	ErrInvalidPacket    = New(InvalidPacket, "")
	ErrNoRoute          = New(NoRoute, "")
	ErrTimeout          = New(Timeout, "")
	ErrLinkDown         = New(LinkDown, "")
	ErrCorruption       = New(Corruption, "")
)
