// Package rerr defines the error kinds the engine can surface to the
// orchestrator. Every kind from a failed run unwinds as one of these,
// wrapped with github.com/pkg/errors so the originating call site and
// (for backend failures) the wrapped cause survive to the caller.
package rerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the fixed error categories a run can fail with.
type Kind string

const (
	KindParseError         Kind = "ParseError"
	KindUnsupportedFeature Kind = "UnsupportedFeature"
	KindTypeMismatch       Kind = "TypeMismatch"
	KindUndefinedSymbol    Kind = "UndefinedSymbol"
	KindOutOfQubits        Kind = "OutOfQubits"
	KindQubitUseAfterFree  Kind = "QubitUseAfterRelease"
	KindRefcountUnderflow  Kind = "RefcountUnderflow"
	KindStepLimitExceeded  Kind = "StepLimitExceeded"
	KindRecursionLimit     Kind = "RecursionLimit"
	KindNoCapableBackend   Kind = "NoCapableBackend"
	KindBackendFailure     Kind = "BackendFailure"
)

// Location pinpoints where in the IR a failure occurred, when known.
type Location struct {
	Function string
	Block    string
	Instr    int
}

func (l Location) String() string {
	if l.Function == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s#%d", l.Function, l.Block, l.Instr)
}

// Error is the concrete error type every failure surfaces as.
type Error struct {
	Kind Kind
	Msg  string
	At   Location
	Err  error // wrapped cause, non-nil only for KindBackendFailure
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	if loc := e.At.String(); loc != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, msg, loc)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a located error of the given kind.
func New(kind Kind, at Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), At: at}
}

// Wrap builds a KindBackendFailure error around a backend's own error,
// preserving it as the cause via errors.WithStack so Cause(err) recovers it.
func Wrap(at Location, cause error, context string) *Error {
	return &Error{
		Kind: KindBackendFailure,
		Msg:  context,
		At:   at,
		Err:  errors.WithStack(cause),
	}
}

// Cause returns the innermost wrapped error behind a KindBackendFailure,
// or err unchanged if it carries no wrapped cause (every other kind).
func Cause(err error) error {
	var e *Error
	if !errors.As(err, &e) || e.Err == nil {
		return err
	}
	return errors.Cause(e.Err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
