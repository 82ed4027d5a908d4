// Package peers implements the membership view of a dpalgo process.
//
// A process does not know who its peers are when it starts. It registers with
// the hub, and the hub eventually answers with a PROC_INITIALIZE_SYSTEM
// message listing every process of the system together with its rank. That
// list becomes the process's PeerSet, and the entry whose port matches the
// process's own listening port gives the process its rank.
//
// The SystemView is populated exactly once and is read-only afterwards. It is
// owned by the node's worker and is not safe for concurrent use.
//
// Quorums are strict majorities of the PeerSet: ⌊N/2⌋+1 processes.
package peers
