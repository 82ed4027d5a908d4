package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds the time spent opening an outbound connection.
	DefaultTimeout = 10 * time.Second

	// DefaultQueueSize is the capacity of the consumer channel.
	DefaultQueueSize = 1024

	bufSize = 64 * 1024
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

/*
NetworkTransport provides a network based transport that can be used to
exchange Envelopes with other processes. It requires an underlying stream layer
to provide a stream abstraction, which can be simple TCP, TLS, etc.

Each outbound message is sent on a fresh connection as a single frame: a 4-byte
big-endian length followed by the protobuf-encoded NETWORK_MESSAGE. Inbound
connections are read frame by frame until the peer closes them, and every
network message is pushed to the consumer channel as a PL_DELIVER.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	consumeCh chan *message.Envelope

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout  time.Duration
	maxFrame uint32

	msink   metrics.MetricSink
	mLabels []metrics.Label
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The timeout is applied when dialing, maxFrame bounds inbound and
// outbound frames and queueSize is the capacity of the consumer channel. A nil
// sink disables metrics.
func NewNetworkTransport(
	stream StreamLayer,
	timeout time.Duration,
	maxFrame uint32,
	queueSize int,
	sink metrics.MetricSink,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if sink == nil {
		sink = &metrics.BlackholeSink{}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	trans := &NetworkTransport{
		consumeCh:  make(chan *message.Envelope, queueSize),
		logger:     logger,
		shutdownCh: make(chan struct{}),
		stream:     stream,
		timeout:    timeout,
		maxFrame:   maxFrame,
		msink:      sink,
		mLabels:    []metrics.Label{LabelNode.M(stream.AdvertiseAddr())},
	}

	return trans
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan *message.Envelope {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Send implements the Transport interface. The connection is opened for this
// message only and closed once the frame is written. A connection failure is
// returned to the caller; there is no retry.
func (n *NetworkTransport) Send(target string, env *message.Envelope, replyPort int32) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	out, err := wrapNetwork(env, replyPort)
	if err != nil {
		return err
	}

	data, err := message.Marshal(out)
	if err != nil {
		return err
	}

	mLabels := append(n.mLabels, LabelPeerAddr.M(target))

	conn, err := n.stream.Dial(target, n.timeout)
	if err != nil {
		n.msink.IncrCounterWithLabels(
			MetricFramesOutError,
			1.0,
			append(mLabels, LabelError.M("dial")),
		)
		return fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer conn.Close()

	if err := WriteFrame(conn, data, n.maxFrame); err != nil {
		n.msink.IncrCounterWithLabels(
			MetricFramesOutError,
			1.0,
			append(mLabels, LabelError.M("write")),
		)
		return fmt.Errorf("writing to %s: %w", target, err)
	}

	n.msink.IncrCounterWithLabels(MetricFramesOut, 1.0, mLabels)
	n.msink.IncrCounterWithLabels(MetricBytesOut, float32(len(data)+frameHeaderLen), mLabels)

	n.logger.WithFields(logrus.Fields{
		"to":   target,
		"type": env.PlSend.Message.Type,
		"path": env.ToAbstractionId,
	}).Debug("sent")

	return nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		// Accept incoming connections
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		n.msink.IncrCounterWithLabels(MetricConnAccepted, 1.0, n.mLabels)

		// Handle the connection in dedicated routine
		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)

	mLabels := append(n.mLabels, LabelPeerAddr.M(conn.RemoteAddr().String()))

	for {
		if err := n.handleFrame(r, mLabels); err != nil {
			switch {
			case err == io.EOF:
			case err == ErrTransportShutdown:
				n.logger.WithField("error", err).Warn("Dropping inbound message")
			case errors.Is(err, ErrNotNetworkMessage):
				// The frame was well-formed; keep reading the connection.
				n.logger.WithField("error", err).Warn("Protocol violation")
				continue
			default:
				n.msink.IncrCounterWithLabels(
					MetricFramesInError,
					1.0,
					append(mLabels, LabelError.M("decode")),
				)
				n.logger.WithField("error", err).Error("Failed to decode incoming frame")
			}
			return
		}
	}
}

// handleFrame reads, decodes and dispatches a single frame.
func (n *NetworkTransport) handleFrame(r io.Reader, mLabels []metrics.Label) error {
	data, err := ReadFrame(r, n.maxFrame)
	if err != nil {
		return err
	}

	n.msink.IncrCounterWithLabels(MetricFramesIn, 1.0, mLabels)
	n.msink.IncrCounterWithLabels(MetricBytesIn, float32(len(data)+frameHeaderLen), mLabels)

	env, err := message.Unmarshal(data)
	if err != nil {
		return err
	}

	deliver, err := unwrapNetwork(env)
	if err != nil {
		return err
	}

	select {
	case n.consumeCh <- deliver:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	return nil
}
