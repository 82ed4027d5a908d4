package register

import (
	"bytes"
	"sort"
	"sync"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/ugorji/go/codec"
)

// Snapshot is the state of a Register at a point in time. Only Timestamp,
// WriterRank and Value are restored from a persisted snapshot; the other fields
// describe the operation in flight when it was taken.
type Snapshot struct {
	Name       string
	Timestamp  int32
	WriterRank int32
	Value      message.Value
	Counter    int32  `codec:",omitempty"`
	Phase      string `codec:",omitempty"`
	Queued     int    `codec:",omitempty"`
}

// Marshal - json encoding of Snapshot
func (s *Snapshot) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (s *Snapshot) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(s)
}

// Store persists register snapshots across restarts.
type Store interface {
	// Get returns the snapshot of the named register, or a
	// common.StoreErr with code KeyNotFound.
	Get(name string) (Snapshot, error)
	Set(s Snapshot) error
	// Names returns the names of all stored registers, sorted.
	Names() ([]string, error)
	Close() error
}

// InmemStore is a Store that keeps snapshots in memory.
type InmemStore struct {
	sync.RWMutex
	snapshots map[string]Snapshot
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		snapshots: make(map[string]Snapshot),
	}
}

// Get implements the Store interface.
func (s *InmemStore) Get(name string) (Snapshot, error) {
	s.RLock()
	defer s.RUnlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return Snapshot{}, common.NewStoreErr("Register", common.KeyNotFound, name)
	}
	return snap, nil
}

// Set implements the Store interface.
func (s *InmemStore) Set(snap Snapshot) error {
	s.Lock()
	defer s.Unlock()
	s.snapshots[snap.Name] = snap
	return nil
}

// Names implements the Store interface.
func (s *InmemStore) Names() ([]string, error) {
	s.RLock()
	defer s.RUnlock()
	names := make([]string, 0, len(s.snapshots))
	for n := range s.snapshots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
