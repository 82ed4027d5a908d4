package dpalgo

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/dpalgo/src/config"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/mosaicnetworks/dpalgo/src/node"
	"github.com/mosaicnetworks/dpalgo/src/peers"
	"github.com/mosaicnetworks/dpalgo/src/register"
	"github.com/mosaicnetworks/dpalgo/src/service"
	"github.com/sirupsen/logrus"
)

// ErrNoListenAddr is returned by Init when no listening address is configured.
var ErrNoListenAddr = errors.New("dpalgo: no listen address")

// Dpalgo is the engine of a dpalgo process: one node per listening address,
// all registered with the same hub, and an optional HTTP service.
type Dpalgo struct {
	Config     *config.Config
	Nodes      []*node.Node
	Transports []net.Transport
	Service    *service.Service

	logger *logrus.Entry
}

// NewDpalgo ...
func NewDpalgo(c *config.Config) *Dpalgo {
	engine := &Dpalgo{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

func (d *Dpalgo) validate() error {
	if _, err := peers.ParseProcessAddr(d.Config.HubAddr); err != nil {
		return fmt.Errorf("hub %q: %w", d.Config.HubAddr, err)
	}

	if len(d.Config.BindAddrs) == 0 {
		return ErrNoListenAddr
	}

	for _, addr := range d.Config.BindAddrs {
		if _, err := peers.ParseProcessAddr(addr); err != nil {
			return fmt.Errorf("listen %q: %w", addr, err)
		}
	}

	return nil
}

func (d *Dpalgo) initTransports() error {
	for _, addr := range d.Config.BindAddrs {
		trans, err := net.NewTCPTransport(
			addr,
			"",
			d.Config.TCPTimeout,
			d.Config.MaxFrame,
			d.Config.QueueSize,
			d.Config.Metrics(),
			d.logger.WithField("listen", addr),
		)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", addr, err)
		}

		d.Transports = append(d.Transports, trans)
	}

	return nil
}

func (d *Dpalgo) initStore(addr string) (register.Store, error) {
	if !d.Config.Store {
		return nil, nil
	}

	dir := d.Config.NodeDatabaseDir(addr)

	d.logger.WithField("path", dir).Debug("Attempting to load or create database")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return register.NewBadgerStore(dir, d.logger.WithField("listen", addr))
}

func (d *Dpalgo) initNodes() error {
	for i, trans := range d.Transports {
		store, err := d.initStore(trans.AdvertiseAddr())
		if err != nil {
			return err
		}

		conf := node.NewConfig(
			d.Config.Owner,
			int32(i+1),
			d.Config.HubAddr,
			d.Config.Metrics(),
			d.Config.BaseLogger(),
		)

		n, err := node.NewNode(conf, trans, store)
		if err != nil {
			return fmt.Errorf("failed to create node %d: %w", i+1, err)
		}

		d.Nodes = append(d.Nodes, n)
	}

	return nil
}

func (d *Dpalgo) initService() error {
	if !d.Config.NoService {
		d.Service = service.NewService(d.Config.ServiceAddr, d.Nodes, d.Config.Metrics(), d.logger)
	}
	return nil
}

// Init validates the configuration, binds every listening address and
// creates the nodes.
func (d *Dpalgo) Init() error {
	if err := d.validate(); err != nil {
		return err
	}

	if err := d.initTransports(); err != nil {
		d.closeTransports()
		return err
	}

	if err := d.initNodes(); err != nil {
		d.closeTransports()
		return err
	}

	if err := d.initService(); err != nil {
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"hub":   d.Config.HubAddr,
		"nodes": len(d.Nodes),
		"store": d.Config.Store,
	}).Debug("Initialized")

	return nil
}

// Run starts every node, registers it with the hub and blocks until all nodes
// have stopped. A SIGINT or SIGTERM shuts the process down. The returned error
// joins the fatal errors of the nodes that failed.
func (d *Dpalgo) Run() error {
	if d.Service != nil {
		go d.Service.Serve()
	}

	for i, n := range d.Nodes {
		go d.Transports[i].Listen()
		n.RunAsync()
	}

	for _, n := range d.Nodes {
		if err := n.Register(); err != nil {
			d.Shutdown()
			return err
		}
	}

	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigintCh)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case sig := <-sigintCh:
			d.logger.WithField("signal", sig).Info("Shutting down")
			d.Shutdown()
		case <-stopped:
		}
	}()

	errCh := make(chan error, len(d.Nodes))
	for _, n := range d.Nodes {
		go func(n *node.Node) {
			<-n.Done()
			err := n.Err()
			if err != nil {
				// a failed node stops alone; release its transport and store
				n.Shutdown()
				err = fmt.Errorf("node %s: %w", n.Addr(), err)
			}
			errCh <- err
		}(n)
	}

	var errs []error
	for range d.Nodes {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Shutdown stops every node.
func (d *Dpalgo) Shutdown() {
	for _, n := range d.Nodes {
		n.Shutdown()
	}
}

func (d *Dpalgo) closeTransports() {
	for _, t := range d.Transports {
		t.Close()
	}
}
