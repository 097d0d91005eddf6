package predicate

import (
	"errors"
	"fmt"
)

// ErrDateUnset is returned when a date predicate is built from an editor
// that was left blank.
var ErrDateUnset = errors.New("date is not set")

// ParseError reports an editor value that cannot be coerced to its
// parameter kind.
type ParseError struct {
	Param string
	Kind  Kind
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parameter %s: cannot parse %q as %s: %v", e.Param, e.Input, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ArgumentError reports arguments that parsed but cannot form a predicate,
// such as a blank date or a zero UID.
type ArgumentError struct {
	Predicate string
	Param     string
	Err       error
}

func (e *ArgumentError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("predicate %s, parameter %s: %v", e.Predicate, e.Param, e.Err)
	}
	return fmt.Sprintf("predicate %s: %v", e.Predicate, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }
