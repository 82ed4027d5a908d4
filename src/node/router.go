package node

import (
	"errors"

	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/mosaicnetworks/dpalgo/src/peers"
	"github.com/mosaicnetworks/dpalgo/src/register"
	"github.com/sirupsen/logrus"
)

// ErrNotInitialized marks messages that need the system view and arrived
// before PROC_INITIALIZE_SYSTEM.
var ErrNotInitialized = errors.New("node: system not initialized")

// dispatch routes one message. Messages addressed to a register go to the
// register store; everything else is routed by type. The only errors returned
// are fatal to the node; all other failures drop the message and are logged.
func (n *Node) dispatch(env *message.Envelope) error {
	n.incr(MetricDispatched, LabelType.M(env.Type.String()))

	if err := env.Validate(); err != nil {
		n.drop(env, err)
		return nil
	}

	path, err := message.ParsePath(env.ToAbstractionId)
	if err != nil {
		n.drop(env, err)
		return nil
	}

	if name, ok := path.Register(); ok {
		if !n.view.Initialized() {
			n.drop(env, ErrNotInitialized)
			return nil
		}
		return n.handleRegister(name, env)
	}

	switch env.Type {
	case message.TypePlDeliver:
		inner, _, err := n.pl.Deliver(env)
		if err != nil {
			n.drop(env, err)
			return nil
		}
		n.delivered++
		return n.dispatch(inner)

	case message.TypePlSend:
		if err := n.pl.Send(env, n.view.SystemID); err != nil {
			n.sendFailed(env, err)
		}
		return nil

	case message.TypeProcInitializeSystem:
		return n.initialize(env)

	case message.TypeProcDestroySystem:
		n.logger.WithField("system_id", env.SystemId).Info("System destroyed by hub")
		return nil

	case message.TypeBebBroadcast:
		if !n.view.Initialized() {
			n.drop(env, ErrNotInitialized)
			return nil
		}
		if err := n.outbox().Broadcast(env.BebBroadcast.Message); err != nil {
			n.sendFailed(env, err)
		}
		return nil

	case message.TypeBebDeliver:
		if !n.view.Initialized() {
			n.drop(env, ErrNotInitialized)
			return nil
		}
		inner, _, err := n.beb.Deliver(env)
		if err != nil {
			n.drop(env, err)
			return nil
		}
		return n.dispatch(inner)

	case message.TypeAppBroadcast:
		if !n.view.Initialized() {
			n.drop(env, ErrNotInitialized)
			return nil
		}
		value := message.NewAppValue(message.ValueOf(env.AppBroadcast.Value))
		if err := n.outbox().Broadcast(value); err != nil {
			n.sendFailed(env, err)
		}
		return nil

	case message.TypeAppValue:
		if err := n.outbox().Reply(env); err != nil {
			n.sendFailed(env, err)
		}
		return nil

	case message.TypeAppRead:
		return n.dispatch(message.NewNnarRead(env.AppRead.Register))

	case message.TypeAppWrite:
		v := message.ValueOf(env.AppWrite.Value)
		return n.dispatch(message.NewNnarWrite(env.AppWrite.Register, v))

	default:
		n.logger.WithFields(logrus.Fields{
			"type": env.Type,
			"path": env.ToAbstractionId,
		}).Warn("No route for message")
		n.dropped++
		n.incr(MetricDropped, LabelReason.M("no_route"))
		return nil
	}
}

func (n *Node) handleRegister(name string, env *message.Envelope) error {
	err := n.registers.Handle(name, env, n.outbox())
	switch {
	case err == nil:
		if env.Type == message.TypeNnarReadReturn || env.Type == message.TypeNnarWriteReturn {
			n.incr(MetricCompleted, LabelType.M(env.Type.String()))
		}
		return nil
	case errors.Is(err, register.ErrInvariant):
		return err
	default:
		n.logger.WithFields(logrus.Fields{
			"register": name,
			"type":     env.Type,
			"error":    err,
		}).Error("Register failed to handle message")
		n.sendErrors++
		n.incr(MetricSendError, LabelType.M(env.Type.String()))
		return nil
	}
}

// initialize populates the system view from PROC_INITIALIZE_SYSTEM. A second
// initialization is ignored; a member list that does not include this node is
// fatal.
func (n *Node) initialize(env *message.Envelope) error {
	err := n.view.Initialize(env.SystemId, env.ProcInitializeSystem.Processes)
	switch {
	case err == nil:
	case errors.Is(err, peers.ErrAlreadyInitialized):
		n.logger.WithField("system_id", env.SystemId).Warn("System already initialized, ignoring")
		return nil
	default:
		return err
	}

	n.setState(Running)

	fields := logrus.Fields{
		"system_id": n.view.SystemID,
		"rank":      n.view.Rank,
		"members":   n.view.Members.Len(),
	}
	n.logger.WithFields(fields).Info("System initialized")
	for _, p := range n.view.Members.Peers {
		n.logger.WithField("member", p.String()).Debug("Member")
	}
	return nil
}

func (n *Node) drop(env *message.Envelope, err error) {
	n.logger.WithFields(logrus.Fields{
		"type":  env.Type,
		"path":  env.ToAbstractionId,
		"error": err,
	}).Warn("Dropping message")
	n.dropped++

	reason := "invalid"
	if errors.Is(err, ErrNotInitialized) {
		reason = "not_initialized"
	}
	n.incr(MetricDropped, LabelReason.M(reason))
}

func (n *Node) sendFailed(env *message.Envelope, err error) {
	n.logger.WithFields(logrus.Fields{
		"type":  env.Type,
		"path":  env.ToAbstractionId,
		"error": err,
	}).Error("Send failed")
	n.sendErrors++
	n.incr(MetricSendError, LabelType.M(env.Type.String()))
}
