package register

import (
	"errors"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/sirupsen/logrus"
)

const registerPrefix = "register_"

// BadgerStore is a Store backed by a badger database.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

func registerKey(name string) []byte {
	return []byte(registerPrefix + name)
}

// Get implements the Store interface.
func (s *BadgerStore) Get(name string) (Snapshot, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(registerKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return Snapshot{}, mapError(err, name)
	}

	var snap Snapshot
	if err := snap.Unmarshal(data); err != nil {
		return Snapshot{}, common.NewStoreErr("Register", common.Corrupt, name)
	}
	return snap, nil
}

// Set implements the Store interface.
func (s *BadgerStore) Set(snap Snapshot) error {
	val, err := snap.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	//insert [register_name] => [snapshot bytes]
	if err := tx.Set(registerKey(snap.Name), val); err != nil {
		return err
	}

	return tx.Commit()
}

// Names implements the Store interface. Badger iterates keys in order, so the
// result is sorted.
func (s *BadgerStore) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(registerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			names = append(names, k[len(registerPrefix):])
		}
		return nil
	})
	return names, err
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath returns the directory of the database.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func mapError(err error, key string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return common.NewStoreErr("Register", common.KeyNotFound, key)
	}
	return err
}
