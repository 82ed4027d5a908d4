package node

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/dpalgo/src/message"
)

var errNoDestination = errors.New("node: message has no destination")

// outbox gives the registers access to the node's lower layers. It is only used
// from the worker.
type outbox struct {
	*Node
}

func (n *Node) outbox() outbox {
	return outbox{n}
}

// Broadcast sends env to every member with Best-Effort Broadcast.
func (o outbox) Broadcast(env *message.Envelope) error {
	return o.beb.Broadcast(env, o.view.Members.Peers, o.view.SystemID)
}

// Send sends env to a single process over the Perfect Link.
func (o outbox) Send(to *message.ProcessId, env *message.Envelope) error {
	if to == nil {
		return fmt.Errorf("%w: %s", errNoDestination, env.Type)
	}
	return o.pl.Send(message.NewPlSend(to, env), o.view.SystemID)
}

// Reply sends env to the hub.
func (o outbox) Reply(env *message.Envelope) error {
	return o.Send(o.view.Hub, env)
}

// Unwrap strips a PL or BEB delivery and resolves its sender against the
// membership.
func (o outbox) Unwrap(env *message.Envelope) (*message.Envelope, *message.ProcessId, error) {
	var (
		inner  *message.Envelope
		sender *message.ProcessId
		err    error
	)
	switch env.Type {
	case message.TypePlDeliver:
		inner, sender, err = o.pl.Deliver(env)
		if err == nil {
			o.delivered++
		}
	case message.TypeBebDeliver:
		inner, sender, err = o.beb.Deliver(env)
	default:
		err = fmt.Errorf("%w: cannot unwrap %s", message.ErrMissingPayload, env.Type)
	}
	if err != nil {
		return nil, nil, err
	}
	return inner, o.view.Resolve(sender), nil
}

// Size is the number of members of the system.
func (o outbox) Size() int {
	return o.view.Members.Len()
}

// Rank is the rank of this node.
func (o outbox) Rank() int32 {
	return o.view.Rank
}
