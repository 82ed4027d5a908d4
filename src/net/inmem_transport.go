package net

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/dpalgo/src/message"
)

var inmemPort int32 = 40000

// NewInmemAddr returns a new loopback address with a unique port. The port is
// never bound; it only names an InmemTransport.
func NewInmemAddr() string {
	port := atomic.AddInt32(&inmemPort, 1)
	return net.JoinHostPort(SenderHost, strconv.Itoa(int(port)))
}

// InmemTransport Implements the Transport interface, to allow nodes to be
// tested in-memory without going over a network. Messages are still encoded
// and decoded so that they go through the same wrapping as over TCP.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan *message.Envelope
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
	closed     bool
}

// NewInmemTransport is used to initialize a new transport
// and generates a local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan *message.Envelope, DefaultQueueSize),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    time.Second,
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan *message.Envelope {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(target string, env *message.Envelope, replyPort int32) error {
	i.RLock()
	peer, ok := i.peers[target]
	closed := i.closed
	i.RUnlock()

	if closed {
		return ErrTransportShutdown
	}
	if !ok {
		return fmt.Errorf("failed to connect to peer: %v", target)
	}

	out, err := wrapNetwork(env, replyPort)
	if err != nil {
		return err
	}
	data, err := message.Marshal(out)
	if err != nil {
		return err
	}

	return peer.deliver(data, i.timeout)
}

func (i *InmemTransport) deliver(data []byte, timeout time.Duration) error {
	env, err := message.Unmarshal(data)
	if err != nil {
		return err
	}
	deliver, err := unwrapNetwork(env)
	if err != nil {
		return err
	}

	select {
	case i.consumerCh <- deliver:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("delivery to %s timed out", i.localAddr)
	}
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	i.Lock()
	i.closed = true
	i.Unlock()
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}
