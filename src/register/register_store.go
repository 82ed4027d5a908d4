package register

import (
	"sort"

	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/message"
	"github.com/sirupsen/logrus"
)

// RegisterStore maps register names to Registers. Registers are created the
// first time a message addresses them and live as long as the process.
type RegisterStore struct {
	registers map[string]*Register
	store     Store
	logger    *logrus.Entry
}

// NewRegisterStore returns an empty RegisterStore. store may be nil, in which
// case registers are not persisted.
func NewRegisterStore(store Store, logger *logrus.Entry) *RegisterStore {
	return &RegisterStore{
		registers: make(map[string]*Register),
		store:     store,
		logger:    logger,
	}
}

// Get returns the named register, creating it on first use. A new register
// starts from its persisted snapshot when the store has one.
func (s *RegisterStore) Get(name string) *Register {
	if r, ok := s.registers[name]; ok {
		return r
	}

	r := NewRegister(name, s.store, s.logger)
	if s.store != nil {
		snap, err := s.store.Get(name)
		switch {
		case err == nil:
			r.Restore(snap)
			s.logger.WithFields(logrus.Fields{
				"register":    name,
				"timestamp":   snap.Timestamp,
				"writer_rank": snap.WriterRank,
			}).Info("restored register")
		case !common.IsStore(err, common.KeyNotFound):
			s.logger.WithError(err).WithField("register", name).Error("failed to load register")
		}
	}

	s.registers[name] = r
	return r
}

// Handle dispatches env to the named register.
func (s *RegisterStore) Handle(name string, env *message.Envelope, out Outbox) error {
	return s.Get(name).Handle(env, out)
}

// Len returns the number of registers created so far.
func (s *RegisterStore) Len() int {
	return len(s.registers)
}

// Snapshots returns the state of every register, sorted by name.
func (s *RegisterStore) Snapshots() []Snapshot {
	res := make([]Snapshot, 0, len(s.registers))
	for _, r := range s.registers {
		res = append(res, r.Snapshot())
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}
