// Package errs defines the error kinds surfaced by xmindctl.
//
// Every failure raised by the archive, document, path and edit layers is an
// *Error carrying a Kind. Callers test for a kind with errors.Is against the
// exported sentinels:
//
//	if errors.Is(err, errs.ErrMissingEntry) { ... }
//
// The CLI maps kinds to exit codes so scripts can tell failures apart.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidFormat
	KindMissingEntry
	KindInvalidExpression
	KindAddressing
	KindIndexOutOfRange
	KindWriteFailure
	KindDuplicateID
	KindInvalidInput
)

// String returns the snake_case name printed by the CLI.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidFormat:
		return "invalid_format"
	case KindMissingEntry:
		return "missing_entry"
	case KindInvalidExpression:
		return "invalid_expression"
	case KindAddressing:
		return "addressing_error"
	case KindIndexOutOfRange:
		return "index_out_of_range"
	case KindWriteFailure:
		return "write_failure"
	case KindDuplicateID:
		return "duplicate_id"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit status for a failure of this kind.
func (k Kind) ExitCode() int {
	if k == KindUnknown {
		return 1
	}
	return int(k) + 1
}

// Sentinels for errors.Is. They compare equal to any *Error of the same kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidFormat     = &Error{Kind: KindInvalidFormat}
	ErrMissingEntry      = &Error{Kind: KindMissingEntry}
	ErrInvalidExpression = &Error{Kind: KindInvalidExpression}
	ErrAddressing        = &Error{Kind: KindAddressing}
	ErrIndexOutOfRange   = &Error{Kind: KindIndexOutOfRange}
	ErrWriteFailure      = &Error{Kind: KindWriteFailure}
	ErrDuplicateID       = &Error{Kind: KindDuplicateID}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

// Error is a classified failure. Op names the operation ("extract",
// "replace", "resolve", ...) and Path the file or expression involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is a sentinel (or any *Error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with a formatted cause.
func New(kind Kind, op, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. An err that already carries a kind keeps it.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}
