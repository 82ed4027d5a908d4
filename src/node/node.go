package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/mosaicnetworks/dpalgo/src/broadcast"
	"github.com/mosaicnetworks/dpalgo/src/link"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/mosaicnetworks/dpalgo/src/peers"
	"github.com/mosaicnetworks/dpalgo/src/register"
	"github.com/sirupsen/logrus"
)

// ErrNotRunning is returned by queries to a node whose worker is not running.
var ErrNotRunning = errors.New("node: worker not running")

//Node is one process of the system. All protocol state (system view and
//registers) belongs to a single worker goroutine, Run, which consumes the
//transport's channel and dispatches every message in order.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	view      *peers.SystemView
	registers *register.RegisterStore
	store     register.Store

	trans net.Transport
	netCh <-chan *message.Envelope
	pl    *link.PerfectLink
	beb   *broadcast.Broadcaster

	queryCh      chan func()
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
	doneCh       chan struct{}
	err          error

	msink   metrics.MetricSink
	mLabels []metrics.Label

	start      time.Time
	delivered  int
	dropped    int
	sendErrors int
}

//NewNode is a factory method that returns a Node instance. The node listens on
//trans, and its own port is the port of trans's advertise address. store may be
//nil.
func NewNode(conf *Config, trans net.Transport, store register.Store) (*Node, error) {
	self, err := peers.ParseProcessAddr(trans.AdvertiseAddr())
	if err != nil {
		return nil, fmt.Errorf("transport address: %w", err)
	}

	view, err := peers.NewSystemView(self.Port, conf.HubAddr)
	if err != nil {
		return nil, fmt.Errorf("hub address: %w", err)
	}

	logger := conf.Logger.WithFields(logrus.Fields{
		"node":  trans.AdvertiseAddr(),
		"index": conf.Index,
	})

	sink := conf.MetricSink
	if sink == nil {
		sink = &metrics.BlackholeSink{}
	}

	pl := link.NewPerfectLink(trans, self.Port, logger)

	node := Node{
		conf:       conf,
		logger:     logger,
		view:       view,
		registers:  register.NewRegisterStore(store, logger),
		store:      store,
		trans:      trans,
		netCh:      trans.Consumer(),
		pl:         pl,
		beb:        broadcast.NewBroadcaster(pl, logger),
		queryCh:    make(chan func()),
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
		msink:      sink,
		mLabels:    []metrics.Label{LabelNode.M(trans.AdvertiseAddr())},
	}

	return &node, nil
}

//Register sends PROC_REGISTRATION to the hub. The hub answers, once every
//process has registered, with PROC_INITIALIZE_SYSTEM.
func (n *Node) Register() error {
	reg := message.NewRegistration(n.conf.Owner, n.conf.Index)
	if err := n.pl.Send(message.NewPlSend(n.view.Hub, reg), ""); err != nil {
		return fmt.Errorf("registering with hub %s: %w", n.view.Hub.Addr(), err)
	}

	n.logger.WithFields(logrus.Fields{
		"hub":   n.view.Hub.Addr(),
		"owner": n.conf.Owner,
	}).Info("Registered with hub")

	return nil
}

//RunAsync calls Run in a separate goroutine. The error that stopped the worker,
//if any, is available from Err once Done is closed.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")
	n.goFunc(func() {
		n.Run()
	})
}

//Run is the node's worker. It returns nil after Shutdown, or the fatal error
//that stopped it.
func (n *Node) Run() error {
	defer close(n.doneCh)

	n.start = time.Now()
	n.logger.Info("Run loop")

	for {
		select {
		case env, ok := <-n.netCh:
			if !ok {
				return nil
			}
			if err := n.dispatch(env); err != nil {
				n.logger.WithError(err).Error("Fatal error, stopping node")
				n.err = err
				n.setState(Failed)
				return err
			}
		case q := <-n.queryCh:
			q()
		case <-n.shutdownCh:
			return nil
		}
	}
}

//Done is closed when the worker stops.
func (n *Node) Done() <-chan struct{} {
	return n.doneCh
}

//Err returns the fatal error that stopped the worker. It is only meaningful
//after Done is closed.
func (n *Node) Err() error {
	select {
	case <-n.doneCh:
		return n.err
	default:
		return nil
	}
}

//Shutdown stops the worker and closes the transport and the store.
func (n *Node) Shutdown() {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.trans.Close()

		if n.store != nil {
			if err := n.store.Close(); err != nil {
				n.logger.WithError(err).Error("Closing store")
			}
		}
	}
}

//GetState returns the current state of the node
func (n *Node) GetState() State {
	return n.getState()
}

//Addr returns the address the node listens on
func (n *Node) Addr() string {
	return n.trans.AdvertiseAddr()
}

//GetStats returns information about the node.
func (n *Node) GetStats() (map[string]string, error) {
	var s map[string]string
	err := n.query(func() {
		s = n.stats()
	})
	return s, err
}

//GetRegisters returns a snapshot of every register the node hosts.
func (n *Node) GetRegisters() ([]register.Snapshot, error) {
	var res []register.Snapshot
	err := n.query(func() {
		res = n.registers.Snapshots()
	})
	return res, err
}

// query runs f on the worker and waits for it to complete.
func (n *Node) query(f func()) error {
	done := make(chan struct{})
	q := func() {
		f()
		close(done)
	}

	timeout := n.conf.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	select {
	case n.queryCh <- q:
	case <-n.doneCh:
		return ErrNotRunning
	case <-time.After(timeout):
		return ErrNotRunning
	}

	<-done
	return nil
}

func (n *Node) stats() map[string]string {
	members := make([]string, 0, n.view.Members.Len())
	for _, p := range n.view.Members.Peers {
		members = append(members, p.Addr())
	}

	return map[string]string{
		"addr":        n.trans.AdvertiseAddr(),
		"owner":       n.conf.Owner,
		"index":       strconv.Itoa(int(n.conf.Index)),
		"state":       n.getState().String(),
		"system_id":   n.view.SystemID,
		"rank":        strconv.Itoa(int(n.view.Rank)),
		"members":     strings.Join(members, ","),
		"num_members": strconv.Itoa(n.view.Members.Len()),
		"registers":   strconv.Itoa(n.registers.Len()),
		"delivered":   strconv.Itoa(n.delivered),
		"dropped":     strconv.Itoa(n.dropped),
		"send_errors": strconv.Itoa(n.sendErrors),
		"uptime":      time.Since(n.start).Truncate(time.Second).String(),
	}
}
