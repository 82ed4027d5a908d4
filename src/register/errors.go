package register

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/dpalgo/src/message"
)

var (
	// ErrInvariant is matched by every InvariantError.
	ErrInvariant = errors.New("register: protocol invariant violated")

	ErrUnknownType = errors.New("register: unexpected message type")
)

// InvariantError reports an internal value or ack tagged with an operation
// counter the register has not reached yet. It means a reply to an operation
// that was never issued, and is fatal to the node.
type InvariantError struct {
	Register string
	Type     message.Type
	Got      int32
	Current  int32
}

// NewInvariantError ...
func NewInvariantError(register string, t message.Type, got, current int32) InvariantError {
	return InvariantError{
		Register: register,
		Type:     t,
		Got:      got,
		Current:  current,
	}
}

// Error ...
func (e InvariantError) Error() string {
	return fmt.Sprintf("register %q: %s for operation %d, current operation is %d",
		e.Register, e.Type, e.Got, e.Current)
}

// Is makes errors.Is(err, ErrInvariant) true for any InvariantError.
func (e InvariantError) Is(target error) bool {
	return target == ErrInvariant
}
