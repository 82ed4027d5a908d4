// Package net implements the transports used by dpalgo processes to exchange
// Envelopes.
//
// This package contains two implementations of the Transport interface:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// Wire format
//
// Every message travels on its own TCP connection as a single frame:
//
//   [4-byte big-endian length][protobuf-encoded Envelope]
//
// The Envelope on the wire is always a NETWORK_MESSAGE that carries the
// sender's host and listening port next to the actual message. Send builds it
// from an outbound PL_SEND; the receiving side checks the type, strips the
// wrapper and pushes a PL_DELIVER onto the Consumer channel. Frames of any
// other type are dropped with a warning. Malformed frames terminate the
// connection they were read from.
//
// Sends are synchronous and are not retried. The dial timeout (10 seconds by
// default) is the only timeout applied.
package net
