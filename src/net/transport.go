package net

import (
	"github.com/mosaicnetworks/dpalgo/src/message"
)

// Transport provides an interface for network transports to allow a node to
// exchange Envelopes with other processes and with the hub.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel of PL_DELIVER envelopes, one per network
	// message received.
	Consumer() <-chan *message.Envelope

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Send strips the PL_SEND wrapper of env, wraps its inner message in a
	// NETWORK_MESSAGE carrying replyPort, and writes it to target.
	Send(target string, env *message.Envelope, replyPort int32) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
