package charta

import (
	"errors"
	"fmt"
)

// Code categorizes VM errors for programmatic handling.
type Code string

const (
	// CodeParse indicates a payload that is not well-formed IR JSON.
	CodeParse Code = "PARSE"

	// CodeIRLoad indicates well-formed IR describing an invalid program.
	CodeIRLoad Code = "IR_LOAD"

	// CodeIO indicates a failure acquiring IR bytes from a file.
	CodeIO Code = "IO"

	// CodeNotFound indicates a reference to an undeclared signal or coil.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidOperation indicates an operation forbidden by the
	// current lifecycle state, such as executing a cycle while unloaded.
	CodeInvalidOperation Code = "INVALID_OPERATION"

	// CodeInternal indicates an evaluation-time inconsistency that
	// load-time validation should have made impossible.
	CodeInternal Code = "VM_INTERNAL"
)

// Error is the public error type returned by every VM operation.
type Error struct {
	Code    Code
	Message string
	// Err is the underlying cause, when one exists.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps a cause with a code, reusing the cause's message.
func newError(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsParse reports whether err is a CodeParse error.
func IsParse(err error) bool { return is(err, CodeParse) }

// IsIRLoad reports whether err is a CodeIRLoad error.
func IsIRLoad(err error) bool { return is(err, CodeIRLoad) }

// IsIO reports whether err is a CodeIO error.
func IsIO(err error) bool { return is(err, CodeIO) }

// IsNotFound reports whether err is a CodeNotFound error.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsInvalidOperation reports whether err is a CodeInvalidOperation error.
func IsInvalidOperation(err error) bool { return is(err, CodeInvalidOperation) }

// IsInternal reports whether err is a CodeInternal error.
func IsInternal(err error) bool { return is(err, CodeInternal) }
