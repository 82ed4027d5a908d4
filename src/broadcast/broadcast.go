// Package broadcast implements Best-Effort Broadcast over Perfect Links.
//
// A broadcast is N independent PL sends, one per member of the system,
// including the sender itself. If the sender is correct, every correct member
// delivers the message once per PL delivery. There is no ordering or atomicity
// across members, and no deduplication on top of the link.
package broadcast

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/dpalgo/src/link"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/sirupsen/logrus"
)

// Broadcaster sends messages to every member of the system.
type Broadcaster struct {
	pl     *link.PerfectLink
	logger *logrus.Entry
}

// NewBroadcaster ...
func NewBroadcaster(pl *link.PerfectLink, logger *logrus.Entry) *Broadcaster {
	return &Broadcaster{
		pl:     pl,
		logger: logger,
	}
}

// Broadcast sends a copy of env to every member. Each copy travels in its own
// PL_SEND addressed to the env's path followed by ".beb". A failed send does
// not prevent the others; all failures are returned together.
func (b *Broadcaster) Broadcast(env *message.Envelope, members []*message.ProcessId, systemID string) error {
	var errs []error
	for _, m := range members {
		inner := env.Clone()
		inner.SystemId = systemID

		send := message.NewPlSend(m, inner)
		send.ToAbstractionId = message.WithLayer(env.ToAbstractionId, message.LayerBEB)

		if err := b.pl.Send(send, systemID); err != nil {
			b.logger.WithFields(logrus.Fields{
				"to":    m.String(),
				"type":  env.Type,
				"error": err,
			}).Error("beb send failed")
			errs = append(errs, fmt.Errorf("beb to %s: %w", m, err))
		}
	}
	return errors.Join(errs...)
}

// Deliver strips the BEB_DELIVER wrapper of env and returns the inner message
// with the process that broadcast it.
func (b *Broadcaster) Deliver(env *message.Envelope) (*message.Envelope, *message.ProcessId, error) {
	if env.Type != message.TypeBebDeliver || env.BebDeliver == nil || env.BebDeliver.Message == nil {
		return nil, nil, fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
	}
	inner := env.BebDeliver.Message
	if inner.SystemId == "" {
		inner.SystemId = env.SystemId
	}
	return inner, env.BebDeliver.Sender, nil
}
