package dberrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies failures surfaced by logs, stores and cursors.
type Kind int

const (
	KindUnknown Kind = iota
	// KindOpen covers path, lock and permission failures while opening.
	KindOpen
	// KindClosed is returned for operations on a closed log or store.
	KindClosed
	// KindWrite covers failed point writes, batches and range deletes.
	KindWrite
	// KindCatchUp is returned when a secondary fails to resync with its primary.
	KindCatchUp
	// KindDecode means a stored key could not be parsed as a sequence key.
	KindDecode
	// KindClose is returned when the flush performed by Close fails.
	KindClose
	// KindRead covers failed point reads and scans.
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "OpenError"
	case KindClosed:
		return "ClosedError"
	case KindWrite:
		return "WriteError"
	case KindCatchUp:
		return "CatchUpError"
	case KindDecode:
		return "DecodeError"
	case KindClose:
		return "CloseError"
	case KindRead:
		return "ReadError"
	default:
		return "Error"
	}
}

// Error is a typed failure carrying the operation and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return "seglog: " + e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("seglog: %s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("seglog: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("seglog: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels of the same Kind, so errors.Is(err, ErrWrite) holds for
// any write failure regardless of its cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrOpen    = &Error{Kind: KindOpen}
	ErrClosed  = &Error{Kind: KindClosed}
	ErrWrite   = &Error{Kind: KindWrite}
	ErrCatchUp = &Error{Kind: KindCatchUp}
	ErrDecode  = &Error{Kind: KindDecode}
	ErrClose   = &Error{Kind: KindClose}
	ErrRead    = &Error{Kind: KindRead}

	// ErrNotFound is returned by point reads for absent keys.
	ErrNotFound = errors.New("seglog: not found")
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("seglog: invalid argument")
)

// New wraps err as a failure of the given kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Closed builds a ClosedError for op.
func Closed(op string) error {
	return &Error{Kind: KindClosed, Op: op}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
