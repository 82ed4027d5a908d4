// Package link implements the Perfect Link abstraction on top of a Transport.
//
// A Perfect Link sends one message to one process and delivers messages sent
// to this process. Delivery is reliable as long as the destination is
// reachable: every PL_SEND is a single TCP write on a fresh connection. There
// is no retransmission and no deduplication; a failed send is reported to the
// caller and the message is lost.
package link

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/sirupsen/logrus"
)

var ErrInvalidHost = errors.New("link: destination host is not an IPv4 address")

// PerfectLink sends and delivers messages for one process.
type PerfectLink struct {
	trans   net.Transport
	ownPort int32
	logger  *logrus.Entry
}

// NewPerfectLink returns a PerfectLink that sends through trans and advertises
// ownPort as the reply port of every message.
func NewPerfectLink(trans net.Transport, ownPort int32, logger *logrus.Entry) *PerfectLink {
	return &PerfectLink{
		trans:   trans,
		ownPort: ownPort,
		logger:  logger,
	}
}

// Send appends ".pl" to the destination path of env, stamps systemID and
// hands it to the transport. env must be a PL_SEND; the link takes ownership
// of it.
func (pl *PerfectLink) Send(env *message.Envelope, systemID string) error {
	if env.Type != message.TypePlSend || env.PlSend == nil || env.PlSend.Destination == nil {
		return net.ErrNotPlSend
	}

	dest := env.PlSend.Destination
	ip, err := netip.ParseAddr(dest.Host)
	if err != nil || !ip.Is4() {
		return fmt.Errorf("%w: %q", ErrInvalidHost, dest.Host)
	}

	env.ToAbstractionId = message.WithLayer(env.ToAbstractionId, message.LayerPL)
	env.SystemId = systemID

	pl.logger.WithFields(logrus.Fields{
		"to":   dest.String(),
		"path": env.ToAbstractionId,
		"type": env.PlSend.Message.Type,
	}).Debug("pl send")

	return pl.trans.Send(dest.Addr(), env, pl.ownPort)
}

// Deliver strips the PL_DELIVER wrapper of env. A delivery addressed to a
// broadcast layer ("X.beb.pl") is lifted into a BEB_DELIVER addressed to
// "X.beb" that remembers the sender; any other delivery returns the inner
// message directly. The sender is returned in both cases.
func (pl *PerfectLink) Deliver(env *message.Envelope) (*message.Envelope, *message.ProcessId, error) {
	if env.Type != message.TypePlDeliver || env.PlDeliver == nil || env.PlDeliver.Message == nil {
		return nil, nil, fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
	}

	inner := env.PlDeliver.Message
	sender := env.PlDeliver.Sender
	if inner.SystemId == "" {
		inner.SystemId = env.SystemId
	}

	path, err := message.ParsePath(env.ToAbstractionId)
	if err != nil {
		return nil, nil, err
	}

	if path.IsBebDelivery() {
		return message.NewBebDeliver(inner, sender, path.Parent().String()), sender, nil
	}
	return inner, sender, nil
}
