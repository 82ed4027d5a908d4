package register

import (
	"fmt"

	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/sirupsen/logrus"
)

// Phase is the stage of the operation in flight on a Register.
type Phase uint32

const (
	// Idle: no operation in flight.
	Idle Phase = iota
	// Consulting: internal read broadcast, collecting internal values.
	Consulting
	// Imposing: internal write broadcast, collecting acks.
	Imposing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Consulting:
		return "Consulting"
	case Imposing:
		return "Imposing"
	default:
		return "Unknown"
	}
}

// Stamp orders writes system-wide: by timestamp, then by writer rank.
type Stamp struct {
	Timestamp  int32
	WriterRank int32
}

// Less reports whether s is strictly older than o.
func (s Stamp) Less(o Stamp) bool {
	if s.Timestamp != o.Timestamp {
		return s.Timestamp < o.Timestamp
	}
	return s.WriterRank < o.WriterRank
}

/*
Register is one replica of an NNAR atomic register.

Reads and writes both run in two phases under a single operation counter. The
consult phase broadcasts an internal read and waits for a majority of internal
values; the impose phase broadcasts an internal write and waits for a majority
of acks. A read imposes the highest value it learned, a write imposes its own
value with a higher timestamp.

Only one application operation is in flight at a time. Reads and writes that
arrive while one is running are queued and started in order.

A Register is not safe for concurrent use; it belongs to the node's worker.
*/
type Register struct {
	Name string

	stamp Stamp
	value message.Value

	counter  int32
	phase    Phase
	reading  bool
	acks     int
	receipts map[message.ProcessId]*message.NnarInternalValue

	writeValue message.Value
	readValue  message.Value

	replyTo *message.ProcessId
	queue   []*message.Envelope

	store  Store
	logger *logrus.Entry
}

// NewRegister returns a Register in its initial state {0, 0, undefined}. A
// non-nil store receives a snapshot every time the local value changes.
func NewRegister(name string, store Store, logger *logrus.Entry) *Register {
	return &Register{
		Name:     name,
		receipts: make(map[message.ProcessId]*message.NnarInternalValue),
		store:    store,
		logger:   logger.WithField("register", name),
	}
}

// Restore replaces the local value with a persisted snapshot.
func (r *Register) Restore(s Snapshot) {
	r.stamp = Stamp{Timestamp: s.Timestamp, WriterRank: s.WriterRank}
	r.value = s.Value
}

// Stamp returns the (timestamp, writer rank) of the local value.
func (r *Register) Stamp() Stamp {
	return r.stamp
}

// Value returns the local value.
func (r *Register) Value() message.Value {
	return r.value
}

// Phase returns the phase of the operation in flight.
func (r *Register) Phase() Phase {
	return r.phase
}

// Counter returns the id of the latest operation started on this register.
func (r *Register) Counter() int32 {
	return r.counter
}

// Snapshot returns the current state of the register.
func (r *Register) Snapshot() Snapshot {
	return Snapshot{
		Name:       r.Name,
		Timestamp:  r.stamp.Timestamp,
		WriterRank: r.stamp.WriterRank,
		Value:      r.value,
		Counter:    r.counter,
		Phase:      r.phase.String(),
		Queued:     len(r.queue),
	}
}

// Handle processes one message addressed to this register. The only error
// that should stop the node is an InvariantError; other errors concern the
// message alone.
func (r *Register) Handle(env *message.Envelope, out Outbox) error {
	switch env.Type {
	case message.TypePlDeliver, message.TypeBebDeliver:
		inner, sender, err := out.Unwrap(env)
		if err != nil {
			return err
		}
		r.replyTo = sender
		return r.Handle(inner, out)

	case message.TypePlSend:
		if env.PlSend == nil || env.PlSend.Message == nil {
			return fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
		}
		return out.Send(env.PlSend.Destination, env.PlSend.Message)

	case message.TypeBebBroadcast:
		if env.BebBroadcast == nil || env.BebBroadcast.Message == nil {
			return fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
		}
		return out.Broadcast(env.BebBroadcast.Message)

	case message.TypeNnarRead, message.TypeNnarWrite:
		if r.phase != Idle {
			r.queue = append(r.queue, env)
			r.logger.WithFields(logrus.Fields{
				"type":   env.Type,
				"queued": len(r.queue),
			}).Debug("operation queued")
			return nil
		}
		return r.start(env, out)

	case message.TypeNnarInternalRead:
		return r.onInternalRead(env, out)

	case message.TypeNnarInternalValue:
		return r.onInternalValue(env, out)

	case message.TypeNnarInternalWrite:
		return r.onInternalWrite(env, out)

	case message.TypeNnarInternalAck:
		return r.onInternalAck(env, out)

	case message.TypeNnarReadReturn:
		var v message.Value
		if env.NnarReadReturn != nil {
			v = message.ValueOf(env.NnarReadReturn.Value)
		}
		return out.Reply(message.NewAppReadReturn(r.Name, v))

	case message.TypeNnarWriteReturn:
		return out.Reply(message.NewAppWriteReturn(r.Name))

	default:
		return fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
}

// start begins the consult phase of an application read or write.
func (r *Register) start(env *message.Envelope, out Outbox) error {
	r.counter++
	r.acks = 0
	r.receipts = make(map[message.ProcessId]*message.NnarInternalValue)
	r.phase = Consulting

	if env.Type == message.TypeNnarRead {
		r.reading = true
	} else {
		r.reading = false
		r.writeValue = message.Value{}
		if env.NnarWrite != nil {
			r.writeValue = message.ValueOf(env.NnarWrite.Value)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"op":      env.Type,
		"counter": r.counter,
	}).Debug("start")

	return out.Broadcast(message.NewNnarInternalRead(r.Name, r.counter))
}

func (r *Register) onInternalRead(env *message.Envelope, out Outbox) error {
	if env.NnarInternalRead == nil {
		return fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
	}
	reply := message.NewNnarInternalValue(
		r.Name,
		env.NnarInternalRead.ReadId,
		r.stamp.Timestamp,
		r.stamp.WriterRank,
		r.value,
	)
	return out.Send(r.replyTo, reply)
}

func (r *Register) onInternalValue(env *message.Envelope, out Outbox) error {
	iv := env.NnarInternalValue
	if iv == nil {
		return fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
	}

	if stale, err := r.checkCounter(env.Type, iv.ReadId); stale || err != nil {
		return err
	}
	if r.phase != Consulting {
		return nil
	}

	var from message.ProcessId
	if r.replyTo != nil {
		from = *r.replyTo
	}
	r.receipts[from] = iv

	if len(r.receipts) < quorum(out.Size()) {
		return nil
	}

	best := Stamp{Timestamp: -1, WriterRank: -1}
	var bestValue message.Value
	for _, rcpt := range r.receipts {
		s := Stamp{Timestamp: rcpt.Timestamp, WriterRank: rcpt.WriterRank}
		if best.Less(s) {
			best = s
			bestValue = message.ValueOf(rcpt.Value)
		}
	}
	r.readValue = bestValue
	r.receipts = make(map[message.ProcessId]*message.NnarInternalValue)
	r.phase = Imposing
	r.acks = 0

	var write *message.Envelope
	if r.reading {
		write = message.NewNnarInternalWrite(r.Name, r.counter, best.Timestamp, best.WriterRank, r.readValue)
	} else {
		write = message.NewNnarInternalWrite(r.Name, r.counter, best.Timestamp+1, out.Rank(), r.writeValue)
	}
	return out.Broadcast(write)
}

func (r *Register) onInternalWrite(env *message.Envelope, out Outbox) error {
	iw := env.NnarInternalWrite
	if iw == nil {
		return fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
	}

	incoming := Stamp{Timestamp: iw.Timestamp, WriterRank: iw.WriterRank}
	if r.stamp.Less(incoming) {
		r.stamp = incoming
		r.value = message.ValueOf(iw.Value)

		r.logger.WithFields(logrus.Fields{
			"timestamp":   r.stamp.Timestamp,
			"writer_rank": r.stamp.WriterRank,
			"value":       r.value,
		}).Debug("adopted")

		r.persist()
	}

	return out.Send(r.replyTo, message.NewNnarInternalAck(r.Name, iw.ReadId))
}

func (r *Register) onInternalAck(env *message.Envelope, out Outbox) error {
	ack := env.NnarInternalAck
	if ack == nil {
		return fmt.Errorf("%w: %s", message.ErrMissingPayload, env.Type)
	}

	if stale, err := r.checkCounter(env.Type, ack.ReadId); stale || err != nil {
		return err
	}
	if r.phase != Imposing {
		return nil
	}

	r.acks++
	if r.acks < quorum(out.Size()) {
		return nil
	}

	r.acks = 0
	r.phase = Idle

	var err error
	if r.reading {
		r.reading = false
		err = r.Handle(message.NewNnarReadReturn(r.Name, r.readValue), out)
	} else {
		err = r.Handle(message.NewNnarWriteReturn(r.Name), out)
	}
	if err != nil {
		r.logger.WithError(err).Error("failed to return operation result")
	}

	return r.next(out)
}

// next starts the oldest queued operation, if any.
func (r *Register) next(out Outbox) error {
	if len(r.queue) == 0 {
		return nil
	}
	env := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return r.start(env, out)
}

// checkCounter reports whether a reply tagged with got belongs to an older
// operation. A reply from an operation not started yet is an InvariantError.
func (r *Register) checkCounter(t message.Type, got int32) (bool, error) {
	switch {
	case got < r.counter:
		return true, nil
	case got > r.counter:
		return false, NewInvariantError(r.Name, t, got, r.counter)
	default:
		return false, nil
	}
}

func (r *Register) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.Set(r.Snapshot()); err != nil {
		r.logger.WithError(err).Error("failed to persist register")
	}
}

// quorum is the size of a strict majority of n processes.
func quorum(n int) int {
	return n/2 + 1
}
