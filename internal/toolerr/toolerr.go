// Package toolerr defines the typed refusals returned by the path sandbox,
// the edit matcher and the command classifier.
//
// Every refusal is an *Error carrying a Code. Errors compare equal under
// errors.Is when their codes match, so callers can test against the exported
// sentinels even after the error has been wrapped with fmt.Errorf("...: %w").
package toolerr

import (
	"errors"
	"fmt"
)

// Code identifies the reason a tool action was refused.
type Code string

const (
	CodeOutsideAllowedRoots   Code = "outside_allowed_roots"
	CodeSymlinkEscapesSandbox Code = "symlink_escapes_sandbox"
	CodePathNotFound          Code = "path_not_found"
	CodeCancelled             Code = "cancelled"

	CodeNoOpEdit        Code = "no_op_edit"
	CodeOldTextNotFound Code = "old_text_not_found"
	CodeAmbiguousMatch  Code = "ambiguous_match"
	CodeInvalidEdit     Code = "invalid_edit"

	CodeEmptyCommand      Code = "empty_command"
	CodeDangerousPattern  Code = "dangerous_pattern"
	CodeDisallowedCommand Code = "disallowed_command"
)

// Sentinels for use with errors.Is.
var (
	ErrOutsideAllowedRoots   = &Error{Code: CodeOutsideAllowedRoots}
	ErrSymlinkEscapesSandbox = &Error{Code: CodeSymlinkEscapesSandbox}
	ErrPathNotFound          = &Error{Code: CodePathNotFound}
	ErrCancelled             = &Error{Code: CodeCancelled}
	ErrNoOpEdit              = &Error{Code: CodeNoOpEdit}
	ErrOldTextNotFound       = &Error{Code: CodeOldTextNotFound}
	ErrAmbiguousMatch        = &Error{Code: CodeAmbiguousMatch}
	ErrInvalidEdit           = &Error{Code: CodeInvalidEdit}
	ErrEmptyCommand          = &Error{Code: CodeEmptyCommand}
	ErrDangerousPattern      = &Error{Code: CodeDangerousPattern}
	ErrDisallowedCommand     = &Error{Code: CodeDisallowedCommand}
)

// Error is a typed refusal.
type Error struct {
	Code    Code
	Message string
	// Path is the offending path or command, when there is one.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New returns an *Error with a formatted message.
func New(code Code, path string, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error that wraps cause.
func Wrap(code Code, path string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf extracts the Code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// Has reports whether err carries the given code.
func Has(err error, code Code) bool {
	return CodeOf(err) == code
}
