package ir

import "fmt"

// ParseError reports a payload that is not a well-formed IR document:
// invalid JSON, or JSON whose shape the IR schema rejects.
//
// ParseError is distinct from LoadError so callers can tell "this is
// not IR at all" apart from "this is IR describing an invalid program".
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse IR payload: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// LoadError reports a well-formed IR document that fails structural
// validation. Code identifies the rule that was violated.
type LoadError struct {
	Code    string
	Message string
	// Rung names the rung the error was found in, when applicable.
	Rung string
}

// Validation error codes.
const (
	ErrCodeDuplicateSignal = "E101" // signal declared twice
	ErrCodeDuplicateCoil   = "E102" // coil declared twice
	ErrCodeUnknownContact  = "E103" // contact references an undeclared name
	ErrCodeUnknownCoil     = "E104" // action targets an undeclared coil
	ErrCodeUndrivenCoil    = "E105" // declared coil driven by no rung
	ErrCodeBadGuard        = "E106" // malformed guard node
	ErrCodeBadAction       = "E107" // malformed or unknown action
	ErrCodeRungCycle       = "E108" // cyclic coil dependency among rungs
)

func (e *LoadError) Error() string {
	if e.Rung != "" {
		return fmt.Sprintf("%s: rung %q: %s", e.Code, e.Rung, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
