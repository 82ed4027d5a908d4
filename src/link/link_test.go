package link

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/stretchr/testify/require"
)

func newLinks(t *testing.T) (*PerfectLink, *net.InmemTransport, *message.ProcessId) {
	addr1, trans1 := net.NewInmemTransport("127.0.0.1:7001")
	_, trans2 := net.NewInmemTransport("127.0.0.1:7002")
	trans2.Connect(addr1, trans1)

	pl := NewPerfectLink(trans2, 7002, common.NewTestEntry(t, common.TestLogLevel))
	dest := &message.ProcessId{Host: "127.0.0.1", Port: 7001, Owner: "abc", Index: 1, Rank: 1}
	return pl, trans1, dest
}

func next(t *testing.T, trans net.Transport) *message.Envelope {
	t.Helper()
	select {
	case e := <-trans.Consumer():
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout")
		return nil
	}
}

func TestSendAndDeliver(t *testing.T) {
	pl, trans1, dest := newLinks(t)

	inner := message.NewNnarInternalAck("x", 3)
	send := message.NewPlSend(dest, inner)
	require.NoError(t, pl.Send(send, "sys"))

	got := next(t, trans1)
	require.Equal(t, "app.nnar[x].pl", got.ToAbstractionId)
	require.Equal(t, "sys", got.SystemId)

	msg, sender, err := pl.Deliver(got)
	require.NoError(t, err)
	require.Equal(t, int32(7002), sender.Port)
	require.Equal(t, message.TypeNnarInternalAck, msg.Type)
	require.Equal(t, int32(3), msg.NnarInternalAck.ReadId)
}

func TestDeliverLiftsBroadcast(t *testing.T) {
	pl, trans1, dest := newLinks(t)

	inner := message.NewNnarInternalRead("x", 1)
	send := message.NewPlSend(dest, inner)
	send.ToAbstractionId = message.WithLayer(send.ToAbstractionId, message.LayerBEB)
	require.NoError(t, pl.Send(send, "sys"))

	got := next(t, trans1)
	require.Equal(t, "app.nnar[x].beb.pl", got.ToAbstractionId)

	msg, sender, err := pl.Deliver(got)
	require.NoError(t, err)
	require.Equal(t, message.TypeBebDeliver, msg.Type)
	require.Equal(t, "app.nnar[x].beb", msg.ToAbstractionId)
	require.Equal(t, sender, msg.BebDeliver.Sender)
	require.Equal(t, message.TypeNnarInternalRead, msg.BebDeliver.Message.Type)
	require.Equal(t, "sys", msg.BebDeliver.Message.SystemId)
}

func TestSendRejectsNonIPv4(t *testing.T) {
	pl, _, _ := newLinks(t)

	for _, host := range []string{"localhost", "::1", ""} {
		send := message.NewPlSend(&message.ProcessId{Host: host, Port: 7001}, message.NewNnarRead("x"))
		require.ErrorIs(t, pl.Send(send, "sys"), ErrInvalidHost, host)
	}

	require.ErrorIs(t, pl.Send(message.NewNnarRead("x"), "sys"), net.ErrNotPlSend)
}

func TestSendUnreachable(t *testing.T) {
	pl, _, _ := newLinks(t)
	send := message.NewPlSend(&message.ProcessId{Host: "127.0.0.1", Port: 7999}, message.NewNnarRead("x"))
	require.Error(t, pl.Send(send, "sys"))
}
