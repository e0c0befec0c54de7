// Package errs defines the coordinator's error kinds (§7), shared
// across store, protocol, endpoint and dispatcher so callers can
// classify a failure with errors.Is/errors.As regardless of which
// component raised it.
package errs

import "errors"

// Kind classifies an error for logging and for callers that need to
// branch on failure category (e.g. the dispatcher distinguishing a
// storage failure from a transport failure).
type Kind string

const (
	KindStorage   Kind = "storage"
	KindProtocol  Kind = "protocol"
	KindTransport Kind = "transport"
	KindNotFound  Kind = "not_found"
	KindCapacity  Kind = "capacity"
)

// Error wraps an underlying cause with a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Storage(op string, err error) error   { return newErr(KindStorage, op, err) }
func Protocol(op string, err error) error  { return newErr(KindProtocol, op, err) }
func Transport(op string, err error) error { return newErr(KindTransport, op, err) }
func NotFound(op string, err error) error  { return newErr(KindNotFound, op, err) }
func Capacity(op string, err error) error  { return newErr(KindCapacity, op, err) }

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrTaskNotFound is the sentinel a store returns from Get/SetStatus
// when the id does not exist, wrapped by NotFound for classification.
var ErrTaskNotFound = errors.New("task not found")
