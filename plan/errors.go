package plan

import "fmt"

// Error reports an invalid plan construction: an unknown column, a type
// mismatch, or an unsupported operator shape. It is returned from node
// constructors, never during proving.
type Error struct {
	msg string
}

func (e *Error) Error() string { return "plan: " + e.msg }

func newError(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}
