package register

import (
	"testing"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	badgerStore, err := NewBadgerStore(t.TempDir(), common.NewTestEntry(t, common.TestLogLevel))
	require.NoError(t, err)
	t.Cleanup(func() { badgerStore.Close() })

	return map[string]Store{
		"inmem":  NewInmemStore(),
		"badger": badgerStore,
	}
}

func TestStoreGetSet(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("x")
			require.True(t, common.IsStore(err, common.KeyNotFound), "%v", err)

			snap := Snapshot{
				Name:       "x",
				Timestamp:  3,
				WriterRank: 2,
				Value:      message.Value{Defined: true, V: -7},
			}
			require.NoError(t, store.Set(snap))

			got, err := store.Get("x")
			require.NoError(t, err)
			assert.Equal(t, snap, got)

			snap.Timestamp = 4
			require.NoError(t, store.Set(snap))
			got, err = store.Get("x")
			require.NoError(t, err)
			assert.Equal(t, int32(4), got.Timestamp)
		})
	}
}

func TestStoreNames(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, n := range []string{"zeta", "alpha", "mid"} {
				require.NoError(t, store.Set(Snapshot{Name: n}))
			}
			names, err := store.Names()
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
		})
	}
}

func TestBadgerStoreReopen(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewTestEntry(t, common.TestLogLevel)

	store, err := NewBadgerStore(dir, logger)
	require.NoError(t, err)
	require.Equal(t, dir, store.StorePath())
	require.NoError(t, store.Set(Snapshot{Name: "x", Timestamp: 1, WriterRank: 3, Value: message.Value{Defined: true, V: 42}}))
	require.NoError(t, store.Close())

	store, err = NewBadgerStore(dir, logger)
	require.NoError(t, err)
	defer store.Close()

	r := NewRegisterStore(store, logger).Get("x")
	assert.Equal(t, Stamp{1, 3}, r.Stamp())
	assert.Equal(t, message.Value{Defined: true, V: 42}, r.Value())
}

func TestSnapshotEncoding(t *testing.T) {
	snap := Snapshot{Name: "x", Timestamp: 1, WriterRank: 2, Value: message.Value{Defined: true, V: 3}}
	data, err := snap.Marshal()
	require.NoError(t, err)

	// operation fields are left out when zero
	assert.NotContains(t, string(data), "Counter")
	assert.NotContains(t, string(data), "Phase")

	var got Snapshot
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, snap, got)
}
