// Package lsferr defines the error taxonomy from spec section 7 as
// sentinel errors, checked with errors.Is/errors.As the way the rest of
// the corpus (not just the teacher) uses stdlib error wrapping rather
// than a third-party errors package.
package lsferr

import "fmt"

// Kind tags a core error so callers can decide whether it is fatal
// (halts the server) or recoverable (surfaced through diagnostics).
type Kind int

const (
	ConfigInvalid Kind = iota
	RuleCycle
	UnknownRule
	ParseError
	UnresolvedSymbol
	IoError
	SubprocessError
)

var kindNames = map[Kind]string{
	ConfigInvalid:    "ConfigInvalid",
	RuleCycle:        "RuleCycle",
	UnknownRule:      "UnknownRule",
	ParseError:       "ParseError",
	UnresolvedSymbol: "UnresolvedSymbol",
	IoError:          "IoError",
	SubprocessError:  "SubprocessError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UnknownErrorKind"
}

// Fatal reports whether errors of this kind must halt server
// initialization (spec section 7 propagation policy).
func (k Kind) Fatal() bool {
	switch k {
	case ConfigInvalid, RuleCycle, UnknownRule:
		return true
	default:
		return false
	}
}

// Error is a core error tagged with its Kind, wrapping an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, lsferr.Sentinel(lsferr.ConfigInvalid)) style
// checks work by comparing on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a zero-message *Error of the given kind, suitable as
// the target of errors.Is.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
