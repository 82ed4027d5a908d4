package dpalgo

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/config"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/mosaicnetworks/dpalgo/src/node"
	"github.com/mosaicnetworks/dpalgo/src/peers"
	"github.com/mosaicnetworks/dpalgo/src/register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSystemID = "sys-1"

// tcpHub plays the hub over a real TCP transport.
type tcpHub struct {
	t     *testing.T
	trans *net.NetworkTransport
	port  int32
}

func newTCPHub(t *testing.T) *tcpHub {
	trans, err := net.NewTCPTransport(
		"127.0.0.1:0",
		"",
		time.Second,
		net.DefaultMaxFrame,
		net.DefaultQueueSize,
		nil,
		common.NewTestEntry(t, common.TestLogLevel),
	)
	require.NoError(t, err)
	go trans.Listen()
	t.Cleanup(func() { trans.Close() })

	id, err := peers.ParseProcessAddr(trans.AdvertiseAddr())
	require.NoError(t, err)

	return &tcpHub{t: t, trans: trans, port: id.Port}
}

func (h *tcpHub) send(to *message.ProcessId, inner *message.Envelope) {
	h.t.Helper()
	inner.SystemId = testSystemID
	require.NoError(h.t, h.trans.Send(to.Addr(), message.NewPlSend(to, inner), h.port))
}

func (h *tcpHub) expect(t message.Type) *message.Envelope {
	h.t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case env := <-h.trans.Consumer():
			if env.Type == message.TypePlDeliver && env.PlDeliver.Message.Type == t {
				return env.PlDeliver.Message
			}
		case <-timeout:
			h.t.Fatalf("timeout waiting for %s", t)
			return nil
		}
	}
}

func newTestEngine(t *testing.T, hub *tcpHub, n int) *Dpalgo {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.HubAddr = hub.trans.AdvertiseAddr()
	conf.BindAddrs = nil
	for i := 0; i < n; i++ {
		conf.BindAddrs = append(conf.BindAddrs, "127.0.0.1:0")
	}
	conf.Store = true

	engine := NewDpalgo(conf)
	require.NoError(t, engine.Init())
	return engine
}

func members(t *testing.T, engine *Dpalgo) []*message.ProcessId {
	var res []*message.ProcessId
	for i, n := range engine.Nodes {
		p, err := peers.ParseProcessAddr(n.Addr())
		require.NoError(t, err)
		p.Owner = engine.Config.Owner
		p.Index = int32(i + 1)
		p.Rank = int32(i + 1)
		res = append(res, p)
	}
	return res
}

func TestInitErrors(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.BindAddrs = nil
	assert.ErrorIs(t, NewDpalgo(conf).Init(), ErrNoListenAddr)

	conf = config.NewTestConfig(t, common.TestLogLevel)
	conf.HubAddr = "nowhere"
	assert.ErrorIs(t, NewDpalgo(conf).Init(), peers.ErrInvalidAddr)

	conf = config.NewTestConfig(t, common.TestLogLevel)
	conf.BindAddrs = []string{"127.0.0.1:0", "127.0.0.1"}
	assert.ErrorIs(t, NewDpalgo(conf).Init(), peers.ErrInvalidAddr)
}

func TestRunOverTCP(t *testing.T) {
	hub := newTCPHub(t)
	engine := newTestEngine(t, hub, 3)

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run() }()

	indexes := map[int32]bool{}
	for range engine.Nodes {
		reg := hub.expect(message.TypeProcRegistration)
		assert.Equal(t, config.DefaultOwner, reg.ProcRegistration.Owner)
		indexes[reg.ProcRegistration.Index] = true
	}
	assert.Equal(t, map[int32]bool{1: true, 2: true, 3: true}, indexes)

	procs := members(t, engine)
	for _, p := range procs {
		init := message.New(message.TypeProcInitializeSystem)
		init.ToAbstractionId = message.LayerApp
		init.ProcInitializeSystem = &message.ProcInitializeSystem{Processes: procs}
		hub.send(p, init)
	}
	for _, n := range engine.Nodes {
		require.Eventually(t, func() bool {
			return n.GetState() == node.Running
		}, 10*time.Second, 10*time.Millisecond)
	}

	write := message.New(message.TypeAppWrite)
	write.ToAbstractionId = message.LayerApp
	write.AppWrite = &message.AppWrite{Register: "x", Value: &message.Value{Defined: true, V: 7}}
	hub.send(procs[0], write)
	hub.expect(message.TypeAppWriteReturn)

	read := message.New(message.TypeAppRead)
	read.ToAbstractionId = message.LayerApp
	read.AppRead = &message.AppRead{Register: "x"}
	hub.send(procs[2], read)
	rr := hub.expect(message.TypeAppReadReturn)
	assert.Equal(t, message.Value{Defined: true, V: 7}, *rr.AppReadReturn.Value)

	for _, n := range engine.Nodes {
		require.Eventually(t, func() bool {
			snaps, err := n.GetRegisters()
			return err == nil && len(snaps) == 1 && snaps[0].Timestamp == 1
		}, 10*time.Second, 10*time.Millisecond)
	}

	engine.Shutdown()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	// the registers survive in each node's database
	store, err := register.NewBadgerStore(
		engine.Config.NodeDatabaseDir(engine.Nodes[1].Addr()),
		common.NewTestEntry(t, common.TestLogLevel),
	)
	require.NoError(t, err)
	defer store.Close()

	snap, err := store.Get("x")
	require.NoError(t, err)
	assert.Equal(t, int32(1), snap.Timestamp)
	assert.Equal(t, int32(1), snap.WriterRank)
	assert.Equal(t, message.Value{Defined: true, V: 7}, snap.Value)
}
