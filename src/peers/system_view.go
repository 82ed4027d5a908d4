package peers

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/mosaicnetworks/dpalgo/src/message"
)

var (
	ErrAlreadyInitialized = errors.New("peers: system already initialized")
	ErrNotMember          = errors.New("peers: own port is not in the member list")
	ErrInvalidAddr        = errors.New("peers: invalid address")
)

// SystemView is what a process knows about the system it belongs to.
type SystemView struct {
	SystemID string
	Rank     int32
	Self     *message.ProcessId
	OwnPort  int32
	Hub      *message.ProcessId
	Members  *PeerSet

	initialized bool
}

// NewSystemView returns an uninitialized view for a process listening on
// ownPort and registered with the hub at hubAddr (host:port).
func NewSystemView(ownPort int32, hubAddr string) (*SystemView, error) {
	hub, err := ParseProcessAddr(hubAddr)
	if err != nil {
		return nil, err
	}
	hub.Owner = "hub"
	return &SystemView{
		OwnPort: ownPort,
		Hub:     hub,
		Members: NewPeerSet(nil),
	}, nil
}

// Initialize populates the view from the hub's PROC_INITIALIZE_SYSTEM. The own
// rank is the rank of the member listening on the own port.
func (v *SystemView) Initialize(systemID string, members []*message.ProcessId) error {
	if v.initialized {
		return ErrAlreadyInitialized
	}

	set := NewPeerSet(members)
	self, ok := set.ByPort(v.OwnPort)
	if !ok {
		return fmt.Errorf("%w: port %d", ErrNotMember, v.OwnPort)
	}

	v.SystemID = systemID
	v.Members = set
	v.Self = self
	v.Rank = self.Rank
	v.initialized = true
	return nil
}

// Initialized reports whether Initialize succeeded.
func (v *SystemView) Initialized() bool {
	return v.initialized
}

// Resolve completes a sender known only by host and port with the identity
// listed in the membership. Senders outside the membership (the hub) are
// returned unchanged.
func (v *SystemView) Resolve(sender *message.ProcessId) *message.ProcessId {
	if sender == nil {
		return nil
	}
	if p, ok := v.Members.Lookup(sender.Host, sender.Port); ok {
		return p
	}
	if sender.Host == v.Hub.Host && sender.Port == v.Hub.Port {
		return v.Hub
	}
	return sender
}

// ParseProcessAddr parses an "ip:port" string into a ProcessId carrying only
// the host and port.
func ParseProcessAddr(addr string) (*message.ProcessId, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: port %q", ErrInvalidAddr, portStr)
	}
	return &message.ProcessId{Host: host, Port: int32(port)}, nil
}
