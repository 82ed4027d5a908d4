package register

import (
	"github.com/mosaicnetworks/dpalgo/src/message"
)

// Outbox is what a Register needs from the node that owns it: the lower
// layers of the stack, the membership size and the process's own rank.
type Outbox interface {
	// Broadcast sends env to every member with Best-Effort Broadcast.
	Broadcast(env *message.Envelope) error

	// Send sends env to a single process over a Perfect Link.
	Send(to *message.ProcessId, env *message.Envelope) error

	// Reply sends the result of an application operation to the hub.
	Reply(env *message.Envelope) error

	// Unwrap strips a PL_DELIVER or BEB_DELIVER and returns the inner
	// message with the process that sent it.
	Unwrap(env *message.Envelope) (*message.Envelope, *message.ProcessId, error)

	// Size is the number of members in the system.
	Size() int

	// Rank is the rank of this process.
	Rank() int32
}
