package net

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/dpalgo/src/message"
)

// SenderHost is the host every process advertises in its network messages.
const SenderHost = "127.0.0.1"

var (
	ErrNotPlSend         = errors.New("net: outbound envelope is not a PL_SEND")
	ErrNotNetworkMessage = errors.New("net: inbound envelope is not a NETWORK_MESSAGE")
)

// wrapNetwork turns an outbound PL_SEND into the NETWORK_MESSAGE that travels
// over the wire. The system id and destination path of the PL_SEND are kept on
// the outer envelope.
func wrapNetwork(env *message.Envelope, replyPort int32) (*message.Envelope, error) {
	if env == nil || env.Type != message.TypePlSend || env.PlSend == nil {
		return nil, ErrNotPlSend
	}
	if env.PlSend.Message == nil {
		return nil, fmt.Errorf("%w: empty PL_SEND", ErrNotPlSend)
	}

	out := message.New(message.TypeNetworkMessage)
	out.SystemId = env.SystemId
	out.ToAbstractionId = env.ToAbstractionId
	out.NetworkMessage = &message.NetworkMessage{
		SenderHost:          SenderHost,
		SenderListeningPort: replyPort,
		Message:             env.PlSend.Message,
	}
	return out, nil
}

// unwrapNetwork turns a NETWORK_MESSAGE into the PL_DELIVER pushed to the
// node. The sender only carries the host and port; the node resolves the rest
// against its membership.
func unwrapNetwork(env *message.Envelope) (*message.Envelope, error) {
	if env.Type != message.TypeNetworkMessage {
		return nil, fmt.Errorf("%w: got %s", ErrNotNetworkMessage, env.Type)
	}
	nm := env.NetworkMessage
	if nm == nil || nm.Message == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrNotNetworkMessage)
	}

	out := message.New(message.TypePlDeliver)
	out.MessageUuid = env.MessageUuid
	out.SystemId = env.SystemId
	out.ToAbstractionId = env.ToAbstractionId
	out.PlDeliver = &message.PlDeliver{
		Sender: &message.ProcessId{
			Host: nm.SenderHost,
			Port: nm.SenderListeningPort,
		},
		Message: nm.Message,
	}
	return out, nil
}
