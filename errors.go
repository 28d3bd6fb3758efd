// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import (
	"errors"
	"fmt"
)

// Kind classifies an error by what kind of thing went
// wrong, not by its Go type. Callers branch on Kind, not on a type switch.
type Kind int

const (
	// KindInvalid marks a malformed directive, unknown phase/modifier, empty
	// inputs, or a missing id on an external rule. Always a parse-time error.
	KindInvalid Kind = iota
	// KindNotFound marks an unknown operator or action name.
	KindNotFound
	// KindAlloc marks an out-of-memory condition, always fatal to the
	// current operation.
	KindAlloc
	// KindAgain marks a flush that could not complete because an edit
	// straddles the emit horizon; the caller must retry with more data or
	// with last=true.
	KindAgain
	// KindInvalidEdit marks an edit dropped for overlap or out-of-range on
	// the final flush. Logged, never aborts the transaction.
	KindInvalidEdit
	// KindTransient marks a script-gate acquisition failure; the failing
	// rule is treated as having produced false.
	KindTransient
	// KindFatal is anything else from the transport; it propagates upward
	// as an error event.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindAlloc:
		return "alloc"
	case KindAgain:
		return "again"
	case KindInvalidEdit:
		return "invalid_edit"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. Op names the operation that failed
// ("parse_operator", "flush", "rule_exec", ...); Err is the wrapped cause,
// if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAgain) and errors.Is(err, ErrInvalidEdit) match
// any *Error of the same Kind, regardless of Op or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// E constructs an *Error. A nil err is fine: some Kinds (KindAgain,
// KindInvalidEdit) are signals, not failures with an underlying cause.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errFmt(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// IsKind reports whether err is (or wraps) a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrAgain is a convenience sentinel for KindAgain comparisons:
// errors.Is(err, sentrytx.ErrAgain).
var ErrAgain = &Error{Kind: KindAgain, Op: "flush"}

// ErrInvalidEdit is a convenience sentinel for KindInvalidEdit comparisons.
var ErrInvalidEdit = &Error{Kind: KindInvalidEdit, Op: "flush"}
