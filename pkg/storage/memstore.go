package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
)

var (
	_ Store = (*MemStore)(nil)
)

type recordKind uint8

const (
	blockRecord recordKind = iota + 1
	qcRecord
	ledgerInfoRecord
	epochStateRecord
	randomnessRecord
)

type memKey struct {
	kind  recordKind
	epoch uint64
	round uint64
}

// MemStore keeps encoded records in memory. Reads never take a lock;
// writes are serialised only to keep the latest ledger info ordered.
type MemStore struct {
	records sync.Map

	mu     sync.Mutex
	latest *types.LedgerInfo
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) put(k memKey, v interface{}) error {
	d, err := types.Encode(v)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	existing, loaded := m.records.LoadOrStore(k, d)
	if loaded && !bytes.Equal(existing.([]byte), d) {
		return errors.Wrapf(ErrStoreConsistency, "record %d at %d/%d", k.kind, k.epoch, k.round)
	}

	return nil
}

func (m *MemStore) get(k memKey, v interface{}) (bool, error) {
	d, ok := m.records.Load(k)
	if !ok {
		return false, nil
	}

	if err := types.Decode(d.([]byte), v); err != nil {
		return false, errors.Wrap(err, "decoding record")
	}

	return true, nil
}

func (m *MemStore) observe(li types.LedgerInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latest == nil || m.latest.Less(&li) {
		m.latest = &li
	}
}

func (m *MemStore) PutBlock(_ context.Context, epoch, round uint64, b *types.Block) error {
	if err := CheckBlockKey(epoch, round, b); err != nil {
		return err
	}

	return m.put(memKey{blockRecord, epoch, round}, b)
}

func (m *MemStore) GetBlock(_ context.Context, epoch, round uint64) (*types.Block, error) {
	b := &types.Block{}
	ok, err := m.get(memKey{blockRecord, epoch, round}, b)
	if !ok {
		return nil, err
	}

	return b, nil
}

func (m *MemStore) PutQC(_ context.Context, epoch, round uint64, qc *consensus.QuorumCertificate) error {
	if err := CheckQCKey(epoch, round, qc); err != nil {
		return err
	}

	if err := m.put(memKey{qcRecord, epoch, round}, qc); err != nil {
		return err
	}

	m.observe(qc.LedgerInfo)
	return nil
}

func (m *MemStore) GetQC(_ context.Context, epoch, round uint64) (*consensus.QuorumCertificate, error) {
	qc := &consensus.QuorumCertificate{}
	ok, err := m.get(memKey{qcRecord, epoch, round}, qc)
	if !ok {
		return nil, err
	}

	return qc, nil
}

func (m *MemStore) PutLedgerInfo(_ context.Context, epoch uint64, li *types.LedgerInfo) error {
	if err := CheckLedgerInfoKey(epoch, li); err != nil {
		return err
	}

	k := memKey{kind: ledgerInfoRecord, epoch: epoch}

	d, err := types.Encode(li)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	if existing, ok := m.records.Load(k); ok {
		if !bytes.Equal(existing.([]byte), d) {
			return errors.Wrapf(ErrStoreConsistency, "ledger info at epoch %d", epoch)
		}
		return nil
	}

	// the next epoch state goes first so a visible ledger info always
	// has its successor set available
	if err := m.PutEpochState(context.Background(), li.CommitInfo.NextEpochState); err != nil {
		return err
	}

	if err := m.put(k, li); err != nil {
		return err
	}

	m.observe(*li)
	return nil
}

func (m *MemStore) GetLedgerInfoByEpoch(_ context.Context, epoch uint64) (*types.LedgerInfo, error) {
	li := &types.LedgerInfo{}
	ok, err := m.get(memKey{kind: ledgerInfoRecord, epoch: epoch}, li)
	if !ok {
		return nil, err
	}

	return li, nil
}

func (m *MemStore) PutEpochState(_ context.Context, s *types.EpochState) error {
	if s == nil {
		return errors.Wrap(ErrKeyMismatch, "nil epoch state")
	}

	return m.put(memKey{kind: epochStateRecord, epoch: s.Epoch}, s)
}

func (m *MemStore) GetEpochState(_ context.Context, epoch uint64) (*types.EpochState, error) {
	s := &types.EpochState{}
	ok, err := m.get(memKey{kind: epochStateRecord, epoch: epoch}, s)
	if !ok {
		return nil, err
	}

	return s, nil
}

func (m *MemStore) GetValidatorCountByEpoch(ctx context.Context, epoch uint64) (uint64, bool, error) {
	s, err := m.GetEpochState(ctx, epoch)
	if err != nil || s == nil {
		return 0, false, err
	}

	return uint64(len(s.Validators)), true, nil
}

func (m *MemStore) PutRandomness(_ context.Context, blockNumber uint64, seed types.RandomnessSeed) error {
	if len(seed) == 0 {
		return errors.Wrapf(ErrEmptySeed, "block %d", blockNumber)
	}

	return m.put(memKey{kind: randomnessRecord, epoch: blockNumber}, []byte(seed))
}

func (m *MemStore) GetRandomness(_ context.Context, blockNumber uint64) (types.RandomnessSeed, error) {
	var seed []byte
	ok, err := m.get(memKey{kind: randomnessRecord, epoch: blockNumber}, &seed)
	if !ok {
		return nil, err
	}

	return types.RandomnessSeed(seed), nil
}

func (m *MemStore) LatestLedgerInfo(_ context.Context) (*types.LedgerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latest == nil {
		return nil, nil
	}

	li := *m.latest
	return &li, nil
}

func (m *MemStore) Close() error {
	return nil
}
