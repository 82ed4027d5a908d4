// Package message defines the Envelope exchanged by processes of a dpalgo
// system, its protobuf wire encoding, and the abstraction paths used to route
// Envelopes between layers.
//
// Envelope
//
// An Envelope carries a Type, routing metadata (SystemId, FromAbstractionId,
// ToAbstractionId, MessageUuid) and one payload selected by the Type. Layer
// payloads own another Envelope:
//
//   NETWORK_MESSAGE{PL_DELIVER-able message}     what travels over TCP
//   PL_SEND{destination, message}               link layer request
//   PL_DELIVER{sender, message}                 link layer indication
//   BEB_BROADCAST{message}                      broadcast request
//   BEB_DELIVER{sender, message}                broadcast indication
//
// Every layer strips exactly one wrapper and hands the rest to the layer above
// it. Wrappers exclusively own their inner Envelope; use Clone before handing
// the same message to several destinations.
//
// Wire format
//
// Envelopes are encoded with the protobuf binary format of the hub's schema,
// using the low-level protowire package. Field numbers and enum values are
// fixed by that schema. Unknown fields are skipped on decode.
//
// Paths
//
// Abstraction ids are dotted paths whose segments may carry a key in brackets,
// for example "app.nnar[x].beb.pl". ParsePath turns them into a Path once, and
// the Path accessors answer routing questions (which register, which layer)
// without further string matching.
package message
