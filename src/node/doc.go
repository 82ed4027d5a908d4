// Package node implements the reactive component of a dpalgo process.
//
// A Node owns a Transport, a SystemView and a RegisterStore. It registers with
// the hub, waits for PROC_INITIALIZE_SYSTEM, and from then on runs the layered
// stack of abstractions on every message it receives:
//
//   app           application requests from the hub (APP_*)
//   app.nnar[x]   the NNAR atomic register named x
//   ....beb       Best-Effort Broadcast
//   ....pl        Perfect Link
//
// Every inbound message arrives on the transport's consumer channel as a
// PL_DELIVER. A single worker goroutine (Run) reads that channel and dispatches
// one message at a time: messages addressed to a register go to the register
// store, other messages are routed by type. Outbound messages are sent
// synchronously by the worker, so a slow peer delays the whole node.
//
// The worker is the only goroutine that touches protocol state. Status queries
// (GetStats, GetRegisters) are executed on the worker between two messages.
//
// A reply from an operation a register never started is an invariant
// violation: the worker stops and Run returns the error. Every other failure
// (unreachable peer, malformed message, message that arrives before the system
// is initialized) is logged and the message dropped.
package node
