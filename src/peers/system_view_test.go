package peers

import (
	"testing"

	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/stretchr/testify/require"
)

func members(n int) []*message.ProcessId {
	res := make([]*message.ProcessId, n)
	for i := 0; i < n; i++ {
		res[i] = &message.ProcessId{
			Host:  "127.0.0.1",
			Port:  int32(5001 + i),
			Owner: "abc",
			Index: int32(i + 1),
			Rank:  int32(i + 1),
		}
	}
	return res
}

func TestMajority(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 2, 4: 3, 5: 3, 7: 4}
	for n, q := range cases {
		require.Equal(t, q, NewPeerSet(members(n)).Majority(), "N=%d", n)
	}
}

func TestInitialize(t *testing.T) {
	v, err := NewSystemView(5002, "127.0.0.1:5000")
	require.NoError(t, err)
	require.False(t, v.Initialized())

	require.NoError(t, v.Initialize("sys", members(3)))
	require.True(t, v.Initialized())
	require.Equal(t, "sys", v.SystemID)
	require.Equal(t, int32(2), v.Rank)
	require.Equal(t, int32(5002), v.Self.Port)
	require.Equal(t, 3, v.Members.Len())

	require.ErrorIs(t, v.Initialize("other", members(5)), ErrAlreadyInitialized)
	require.Equal(t, "sys", v.SystemID)
}

func TestInitializeNotMember(t *testing.T) {
	v, err := NewSystemView(6000, "127.0.0.1:5000")
	require.NoError(t, err)

	require.ErrorIs(t, v.Initialize("sys", members(3)), ErrNotMember)
	require.False(t, v.Initialized())
}

func TestResolve(t *testing.T) {
	v, err := NewSystemView(5001, "127.0.0.1:5000")
	require.NoError(t, err)
	require.NoError(t, v.Initialize("sys", members(3)))

	p := v.Resolve(&message.ProcessId{Host: "127.0.0.1", Port: 5003})
	require.Equal(t, int32(3), p.Rank)
	require.Equal(t, "abc", p.Owner)

	hub := v.Resolve(&message.ProcessId{Host: "127.0.0.1", Port: 5000})
	require.Same(t, v.Hub, hub)

	stranger := &message.ProcessId{Host: "10.0.0.1", Port: 1}
	require.Same(t, stranger, v.Resolve(stranger))
	require.Nil(t, v.Resolve(nil))
}

func TestParseProcessAddr(t *testing.T) {
	p, err := ParseProcessAddr("127.0.0.1:5000")
	require.NoError(t, err)
	require.Equal(t, &message.ProcessId{Host: "127.0.0.1", Port: 5000}, p)

	for _, bad := range []string{"127.0.0.1", "127.0.0.1:x", "127.0.0.1:70000"} {
		_, err := ParseProcessAddr(bad)
		require.ErrorIs(t, err, ErrInvalidAddr, bad)
	}
}
