package peers

import (
	"net"
	"strconv"

	"github.com/mosaicnetworks/dpalgo/src/message"
)

//PeerSet is the ordered list of processes of a system
type PeerSet struct {
	Peers  []*message.ProcessId
	ByAddr map[string]*message.ProcessId

	//cached values
	majority *int
}

//NewPeerSet creates a new PeerSet from a list of processes
func NewPeerSet(peers []*message.ProcessId) *PeerSet {
	peerSet := &PeerSet{
		ByAddr: make(map[string]*message.ProcessId),
	}

	for _, p := range peers {
		if p == nil {
			continue
		}
		peerSet.Peers = append(peerSet.Peers, p)
		peerSet.ByAddr[p.Addr()] = p
	}

	return peerSet
}

//Len returns the number of processes in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

//Majority returns the number of processes that form a strict majority
//(⌊N/2⌋+1) of the PeerSet
func (peerSet *PeerSet) Majority() int {
	if peerSet.majority == nil {
		val := peerSet.Len()/2 + 1
		peerSet.majority = &val
	}
	return *peerSet.majority
}

//Lookup returns the process listening on host:port
func (peerSet *PeerSet) Lookup(host string, port int32) (*message.ProcessId, bool) {
	p, ok := peerSet.ByAddr[net.JoinHostPort(host, strconv.Itoa(int(port)))]
	return p, ok
}

//ByPort returns the first process listening on port, whatever its host
func (peerSet *PeerSet) ByPort(port int32) (*message.ProcessId, bool) {
	for _, p := range peerSet.Peers {
		if p.Port == port {
			return p, true
		}
	}
	return nil, false
}
