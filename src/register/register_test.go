package register

import (
	"errors"
	"testing"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*******************************************************************************
Single register driven by hand
*******************************************************************************/

type sent struct {
	to  *message.ProcessId
	env *message.Envelope
}

type fakeOutbox struct {
	rank       int32
	size       int
	broadcasts []*message.Envelope
	sends      []sent
	replies    []*message.Envelope
}

func (o *fakeOutbox) Broadcast(env *message.Envelope) error {
	o.broadcasts = append(o.broadcasts, env)
	return nil
}

func (o *fakeOutbox) Send(to *message.ProcessId, env *message.Envelope) error {
	o.sends = append(o.sends, sent{to, env})
	return nil
}

func (o *fakeOutbox) Reply(env *message.Envelope) error {
	o.replies = append(o.replies, env)
	return nil
}

func (o *fakeOutbox) Unwrap(env *message.Envelope) (*message.Envelope, *message.ProcessId, error) {
	switch env.Type {
	case message.TypePlDeliver:
		return env.PlDeliver.Message, env.PlDeliver.Sender, nil
	case message.TypeBebDeliver:
		return env.BebDeliver.Message, env.BebDeliver.Sender, nil
	}
	return nil, nil, errors.New("not a delivery")
}

func (o *fakeOutbox) Size() int   { return o.size }
func (o *fakeOutbox) Rank() int32 { return o.rank }

func proc(rank int32) *message.ProcessId {
	return &message.ProcessId{Host: "127.0.0.1", Port: 5000 + rank, Owner: "abc", Index: rank, Rank: rank}
}

func from(sender *message.ProcessId, env *message.Envelope) *message.Envelope {
	d := message.New(message.TypePlDeliver)
	d.ToAbstractionId = message.WithLayer(env.ToAbstractionId, message.LayerPL)
	d.PlDeliver = &message.PlDeliver{Sender: sender, Message: env}
	return d
}

func newTestRegister(t *testing.T) *Register {
	return NewRegister("x", nil, common.NewTestEntry(t, common.TestLogLevel))
}

func TestQuorum(t *testing.T) {
	assert.Equal(t, 2, quorum(3))
	assert.Equal(t, 3, quorum(5))
	assert.Equal(t, 3, quorum(4))
	assert.Equal(t, 1, quorum(1))
}

func TestStampLess(t *testing.T) {
	assert.True(t, Stamp{1, 3}.Less(Stamp{2, 1}))
	assert.True(t, Stamp{1, 1}.Less(Stamp{1, 2}))
	assert.False(t, Stamp{1, 2}.Less(Stamp{1, 2}))
	assert.False(t, Stamp{2, 1}.Less(Stamp{1, 3}))
}

func TestReadBroadcastsInternalRead(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}

	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))
	require.Equal(t, Consulting, r.Phase())
	require.Equal(t, int32(1), r.Counter())
	require.Len(t, out.broadcasts, 1)

	b := out.broadcasts[0]
	require.Equal(t, message.TypeNnarInternalRead, b.Type)
	require.Equal(t, int32(1), b.NnarInternalRead.ReadId)
	require.Equal(t, "app.nnar[x]", b.ToAbstractionId)
}

func TestInternalReadRepliesToSender(t *testing.T) {
	r := newTestRegister(t)
	r.Restore(Snapshot{Timestamp: 4, WriterRank: 2, Value: message.Value{Defined: true, V: 11}})
	out := &fakeOutbox{rank: 1, size: 3}

	require.NoError(t, r.Handle(from(proc(3), message.NewNnarInternalRead("x", 7)), out))
	require.Len(t, out.sends, 1)
	require.Equal(t, proc(3), out.sends[0].to)

	iv := out.sends[0].env.NnarInternalValue
	require.Equal(t, int32(7), iv.ReadId)
	require.Equal(t, int32(4), iv.Timestamp)
	require.Equal(t, int32(2), iv.WriterRank)
	require.Equal(t, message.Value{Defined: true, V: 11}, *iv.Value)
}

func TestValueQuorumPicksHighestStamp(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))

	require.NoError(t, r.Handle(from(proc(2), message.NewNnarInternalValue("x", 1, 3, 1, message.Value{Defined: true, V: 30})), out))
	require.Equal(t, Consulting, r.Phase())
	require.Len(t, out.broadcasts, 1)

	require.NoError(t, r.Handle(from(proc(3), message.NewNnarInternalValue("x", 1, 3, 2, message.Value{Defined: true, V: 32})), out))
	require.Equal(t, Imposing, r.Phase())
	require.Len(t, out.broadcasts, 2)

	// a read imposes what it learned, unchanged
	w := out.broadcasts[1].NnarInternalWrite
	require.Equal(t, int32(1), w.ReadId)
	require.Equal(t, int32(3), w.Timestamp)
	require.Equal(t, int32(2), w.WriterRank)
	require.Equal(t, message.Value{Defined: true, V: 32}, *w.Value)

	// a third value after the quorum changes nothing
	require.NoError(t, r.Handle(from(proc(1), message.NewNnarInternalValue("x", 1, 9, 9, message.Value{Defined: true, V: 99})), out))
	require.Len(t, out.broadcasts, 2)
	require.Equal(t, Imposing, r.Phase())
}

func TestWriteImposesHigherTimestamp(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 2, size: 3}
	require.NoError(t, r.Handle(message.NewNnarWrite("x", message.Value{Defined: true, V: 5}), out))

	require.NoError(t, r.Handle(from(proc(1), message.NewNnarInternalValue("x", 1, 6, 3, message.Value{Defined: true, V: 1})), out))
	require.NoError(t, r.Handle(from(proc(2), message.NewNnarInternalValue("x", 1, 0, 0, message.Value{})), out))

	require.Len(t, out.broadcasts, 2)
	w := out.broadcasts[1].NnarInternalWrite
	require.Equal(t, int32(7), w.Timestamp)
	require.Equal(t, int32(2), w.WriterRank)
	require.Equal(t, message.Value{Defined: true, V: 5}, *w.Value)
}

func TestDuplicateSenderCountsOnce(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))

	v := message.NewNnarInternalValue("x", 1, 0, 0, message.Value{})
	require.NoError(t, r.Handle(from(proc(2), v), out))
	require.NoError(t, r.Handle(from(proc(2), v.Clone()), out))
	require.Equal(t, Consulting, r.Phase())
}

func TestInternalWriteTotalOrder(t *testing.T) {
	r := newTestRegister(t)
	r.Restore(Snapshot{Timestamp: 1, WriterRank: 2, Value: message.Value{Defined: true, V: 5}})
	out := &fakeOutbox{rank: 1, size: 3}

	cases := []struct {
		ts, wr int32
		v      int32
		adopt  bool
	}{
		{1, 2, 7, false}, // tie: no adoption
		{1, 1, 6, false},
		{0, 9, 6, false},
		{1, 3, 8, true},
		{2, 1, 9, true},
	}

	for i, c := range cases {
		before := r.Snapshot()
		env := message.NewNnarInternalWrite("x", int32(i), c.ts, c.wr, message.Value{Defined: true, V: c.v})
		require.NoError(t, r.Handle(from(proc(3), env), out))

		if c.adopt {
			require.Equal(t, Stamp{c.ts, c.wr}, r.Stamp(), "case %d", i)
			require.Equal(t, message.Value{Defined: true, V: c.v}, r.Value(), "case %d", i)
		} else {
			require.Equal(t, before.Value, r.Value(), "case %d", i)
			require.Equal(t, Stamp{before.Timestamp, before.WriterRank}, r.Stamp(), "case %d", i)
		}

		// always acknowledged, to the writer, with the writer's counter
		last := out.sends[len(out.sends)-1]
		require.Equal(t, proc(3), last.to)
		require.Equal(t, message.TypeNnarInternalAck, last.env.Type)
		require.Equal(t, int32(i), last.env.NnarInternalAck.ReadId)
	}
	require.Len(t, out.sends, len(cases))
}

func TestStaleRepliesIgnored(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}

	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))
	completeRead(t, r, out, 1)
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))
	require.Equal(t, int32(2), r.Counter())
	broadcasts := len(out.broadcasts)

	for _, p := range []*message.ProcessId{proc(1), proc(2), proc(3)} {
		require.NoError(t, r.Handle(from(p, message.NewNnarInternalValue("x", 1, 9, 9, message.Value{Defined: true, V: 9})), out))
		require.NoError(t, r.Handle(from(p, message.NewNnarInternalAck("x", 1)), out))
	}

	require.Equal(t, Consulting, r.Phase())
	require.Len(t, out.broadcasts, broadcasts)
	require.Len(t, out.replies, 1)
}

func TestFutureReplyIsInvariantViolation(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))

	err := r.Handle(from(proc(2), message.NewNnarInternalValue("x", 2, 0, 0, message.Value{})), out)
	require.True(t, errors.Is(err, ErrInvariant))

	var ie InvariantError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, "x", ie.Register)
	require.Equal(t, int32(2), ie.Got)
	require.Equal(t, int32(1), ie.Current)

	err = r.Handle(from(proc(2), message.NewNnarInternalAck("x", 5)), out)
	require.ErrorIs(t, err, ErrInvariant)
}

func TestAckOutsideImposeIgnored(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))

	// acks for the current counter while still consulting
	require.NoError(t, r.Handle(from(proc(2), message.NewNnarInternalAck("x", 1)), out))
	require.NoError(t, r.Handle(from(proc(3), message.NewNnarInternalAck("x", 1)), out))
	require.Equal(t, Consulting, r.Phase())
	require.Empty(t, out.replies)
}

func TestReadCompletion(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))
	completeRead(t, r, out, 1)

	require.Equal(t, Idle, r.Phase())
	require.Len(t, out.replies, 1)
	rr := out.replies[0]
	require.Equal(t, message.TypeAppReadReturn, rr.Type)
	require.Equal(t, "x", rr.AppReadReturn.Register)
	require.Equal(t, message.Value{}, *rr.AppReadReturn.Value)
	require.Equal(t, message.LayerApp, rr.ToAbstractionId)
}

func TestOperationsQueue(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 1}

	require.NoError(t, r.Handle(message.NewNnarWrite("x", message.Value{Defined: true, V: 3}), out))
	require.NoError(t, r.Handle(message.NewNnarRead("x"), out))
	require.Equal(t, 1, r.Snapshot().Queued)
	require.Len(t, out.broadcasts, 1)

	// N=1: a single value and a single ack complete each phase
	self := proc(1)
	require.NoError(t, r.Handle(from(self, message.NewNnarInternalValue("x", 1, 0, 0, message.Value{})), out))
	write := out.broadcasts[1]
	require.NoError(t, r.Handle(from(self, write.Clone()), out))
	require.NoError(t, r.Handle(from(self, message.NewNnarInternalAck("x", 1)), out))

	require.Len(t, out.replies, 1)
	require.Equal(t, message.TypeAppWriteReturn, out.replies[0].Type)

	// the queued read started right away
	require.Equal(t, int32(2), r.Counter())
	require.Equal(t, Consulting, r.Phase())
	require.Equal(t, 0, r.Snapshot().Queued)
	require.Equal(t, message.TypeNnarInternalRead, out.broadcasts[2].Type)
}

func TestLayerMessagesAreDelegated(t *testing.T) {
	r := newTestRegister(t)
	out := &fakeOutbox{rank: 1, size: 3}

	inner := message.NewNnarInternalAck("x", 1)
	require.NoError(t, r.Handle(message.NewPlSend(proc(2), inner), out))
	require.Equal(t, proc(2), out.sends[0].to)
	require.Equal(t, inner, out.sends[0].env)

	bb := message.New(message.TypeBebBroadcast)
	bb.BebBroadcast = &message.BebBroadcast{Message: message.NewNnarInternalRead("x", 1)}
	require.NoError(t, r.Handle(bb, out))
	require.Len(t, out.broadcasts, 1)

	require.ErrorIs(t, r.Handle(message.NewAppValue(message.Value{}), out), ErrUnknownType)
}

// completeRead feeds the replies of two of three processes to a register that
// is consulting for counter.
func completeRead(t *testing.T, r *Register, out *fakeOutbox, counter int32) {
	t.Helper()
	for _, p := range []*message.ProcessId{proc(2), proc(3)} {
		require.NoError(t, r.Handle(from(p, message.NewNnarInternalValue("x", counter, 0, 0, message.Value{})), out))
	}
	for _, p := range []*message.ProcessId{proc(2), proc(3)} {
		require.NoError(t, r.Handle(from(p, message.NewNnarInternalAck("x", counter)), out))
	}
}
