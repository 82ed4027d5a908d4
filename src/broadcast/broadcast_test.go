package broadcast

import (
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/link"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesEveryMember(t *testing.T) {
	logger := common.NewTestEntry(t, common.TestLogLevel)

	var (
		members []*message.ProcessId
		trans   []*net.InmemTransport
	)
	for i := 0; i < 3; i++ {
		_, tr := net.NewInmemTransport(fmt.Sprintf("127.0.0.1:%d", 7101+i))
		trans = append(trans, tr)
		members = append(members, &message.ProcessId{
			Host: "127.0.0.1", Port: int32(7101 + i), Owner: "abc", Index: int32(i + 1), Rank: int32(i + 1),
		})
	}
	for _, from := range trans {
		for _, to := range trans {
			from.Connect(to.LocalAddr(), to)
		}
	}

	pl := link.NewPerfectLink(trans[0], 7101, logger)
	beb := NewBroadcaster(pl, logger)

	msg := message.NewNnarInternalRead("x", 1)
	require.NoError(t, beb.Broadcast(msg, members, "sys"))

	for i, tr := range trans {
		var got *message.Envelope
		select {
		case got = <-tr.Consumer():
		case <-time.After(time.Second):
			t.Fatalf("member %d got nothing", i)
		}

		require.Equal(t, "app.nnar[x].beb.pl", got.ToAbstractionId)

		lifted, sender, err := link.NewPerfectLink(tr, int32(7101+i), logger).Deliver(got)
		require.NoError(t, err)
		require.Equal(t, int32(7101), sender.Port)

		inner, bebSender, err := beb.Deliver(lifted)
		require.NoError(t, err)
		require.Equal(t, sender, bebSender)
		require.Equal(t, message.TypeNnarInternalRead, inner.Type)
		require.Equal(t, "sys", inner.SystemId)
		require.Equal(t, message.RegisterPath("x"), inner.ToAbstractionId)
	}

	// The broadcast message itself is left untouched.
	require.Equal(t, message.RegisterPath("x"), msg.ToAbstractionId)
	require.Empty(t, msg.SystemId)
}

func TestBroadcastReportsFailures(t *testing.T) {
	logger := common.NewTestEntry(t, common.TestLogLevel)

	addr, tr := net.NewInmemTransport("127.0.0.1:7201")
	tr.Connect(addr, tr)

	members := []*message.ProcessId{
		{Host: "127.0.0.1", Port: 7201, Rank: 1},
		{Host: "127.0.0.1", Port: 7202, Rank: 2},
	}

	beb := NewBroadcaster(link.NewPerfectLink(tr, 7201, logger), logger)
	err := beb.Broadcast(message.NewNnarInternalRead("x", 1), members, "sys")
	require.Error(t, err)

	// the reachable member still got its copy
	select {
	case <-tr.Consumer():
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestDeliverRejectsOtherTypes(t *testing.T) {
	beb := NewBroadcaster(nil, common.NewTestEntry(t, common.TestLogLevel))
	_, _, err := beb.Deliver(message.NewNnarRead("x"))
	require.ErrorIs(t, err, message.ErrMissingPayload)
}
