package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	lru "github.com/hashicorp/golang-lru"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/tcfw/ledgercert/internal/utils/logging"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
)

var (
	_ storage.Store = (*PebbleStore)(nil)
)

const (
	cacheSize = 1 << 20 * 100

	defaultCacheEntries = 4096
	expectedKeys        = 1 << 20
)

type keyType byte

const (
	blockTPrefix keyType = iota + 1
	qcTPrefix
	ledgerInfoTPrefix
	epochStateTPrefix
	randomnessTPrefix
)

// block payloads are stored with a leading codec byte
const (
	codecRaw  byte = 0
	codecZstd byte = 1
)

// PebbleStore is the durable ledger store. Writes are serialised and
// synced before returning; reads go straight to pebble, which serves
// them from a consistent snapshot without blocking the writer.
type PebbleStore struct {
	db  *pebble.DB
	cfg *config

	wmu sync.Mutex

	// closeMu is held shared by every operation and exclusively by Close
	closeMu sync.RWMutex
	closed  bool

	cache  *lru.Cache
	filter *storage.KeyFilter

	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewPebbleStore(dir string, opts ...Option) (*PebbleStore, error) {
	cfg := &config{
		cacheEntries: defaultCacheEntries,
		compress:     true,
		logger:       logging.Component("storage"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := pebble.NewCache(cacheSize)
	defer c.Unref()

	popts := &pebble.Options{Cache: c}
	if cfg.inMemory {
		popts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, storage.NewIOError("opening pebble", err)
	}

	cache, err := lru.New(cfg.cacheEntries)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating read cache")
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating zstd encoder")
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating zstd decoder")
	}

	s := &PebbleStore{
		db:     db,
		cfg:    cfg,
		cache:  cache,
		filter: storage.NewKeyFilter(expectedKeys),
		enc:    enc,
		dec:    dec,
	}

	if err := s.loadFilter(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *PebbleStore) loadFilter() error {
	iter := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{byte(blockTPrefix)},
		UpperBound: []byte{byte(blockTPrefix) + 1},
	})
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		s.filter.Add(iter.Key())
		n++
	}

	if err := iter.Error(); err != nil {
		return storage.NewIOError("scanning block keys", err)
	}

	s.cfg.logger.WithField("blocks", n).Debug("loaded block key filter")

	return nil
}

func typedKey(kType keyType, parts ...uint64) []byte {
	k := make([]byte, 1, 1+8*len(parts))
	k[0] = byte(kType)

	for _, p := range parts {
		k = binary.BigEndian.AppendUint64(k, p)
	}

	return k
}

func (s *PebbleStore) acquire() error {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return storage.ErrClosed
	}
	return nil
}

func (s *PebbleStore) release() {
	s.closeMu.RUnlock()
}

// getRaw returns a copy of the value at key or nil when missing
func (s *PebbleStore) getRaw(key []byte) ([]byte, error) {
	if v, ok := s.cache.Get(string(key)); ok {
		return v.([]byte), nil
	}

	d, done, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, storage.NewIOError("reading record", err)
	}
	defer done.Close()

	v := append([]byte(nil), d...)
	s.cache.Add(string(key), v)

	return v, nil
}

// putOnce writes value at key unless the key already holds it. Must be
// called with wmu held.
func (s *PebbleStore) putOnce(b *pebble.Batch, key, value []byte) (bool, error) {
	existing, err := s.getRaw(key)
	if err != nil {
		return false, err
	}

	if existing != nil {
		if !bytes.Equal(existing, value) {
			return false, errors.Wrapf(storage.ErrStoreConsistency, "key %x", key)
		}
		return false, nil
	}

	if err := b.Set(key, value, nil); err != nil {
		return false, storage.NewIOError("staging record", err)
	}

	return true, nil
}

func (s *PebbleStore) commit(b *pebble.Batch, keys [][]byte, values [][]byte) error {
	if err := b.Commit(pebble.Sync); err != nil {
		return storage.NewIOError("committing records", err)
	}

	for i, k := range keys {
		s.cache.Add(string(k), values[i])
	}

	return nil
}

func (s *PebbleStore) write(records ...[2][]byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	keys := make([][]byte, 0, len(records))
	values := make([][]byte, 0, len(records))

	for _, r := range records {
		staged, err := s.putOnce(b, r[0], r[1])
		if err != nil {
			return err
		}
		if staged {
			keys = append(keys, r[0])
			values = append(values, r[1])
		}
	}

	if len(keys) == 0 {
		return nil
	}

	return s.commit(b, keys, values)
}

func (s *PebbleStore) encodeBlock(b *types.Block) ([]byte, error) {
	d, err := types.Encode(b)
	if err != nil {
		return nil, errors.Wrap(err, "encoding block")
	}

	if !s.cfg.compress {
		return append([]byte{codecRaw}, d...), nil
	}

	return s.enc.EncodeAll(d, []byte{codecZstd}), nil
}

func (s *PebbleStore) decodeBlock(v []byte) (*types.Block, error) {
	if len(v) == 0 {
		return nil, errors.New("empty block record")
	}

	d := v[1:]
	switch v[0] {
	case codecRaw:
	case codecZstd:
		var err error
		d, err = s.dec.DecodeAll(d, nil)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing block")
		}
	default:
		return nil, errors.Errorf("unknown block codec %d", v[0])
	}

	b := &types.Block{}
	if err := types.Decode(d, b); err != nil {
		return nil, errors.Wrap(err, "decoding block")
	}

	return b, nil
}

func (s *PebbleStore) PutBlock(_ context.Context, epoch, round uint64, b *types.Block) error {
	if err := storage.CheckBlockKey(epoch, round, b); err != nil {
		return err
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	k := typedKey(blockTPrefix, epoch, round)

	v, err := s.encodeBlock(b)
	if err != nil {
		return err
	}

	// compare decoded content so a codec change never reads as a conflict
	s.wmu.Lock()
	existing, err := s.getRaw(k)
	if err != nil {
		s.wmu.Unlock()
		return err
	}
	if existing != nil {
		s.wmu.Unlock()

		prev, err := s.decodeBlock(existing)
		if err != nil {
			return err
		}
		if !prev.Equal(b) {
			return errors.Wrapf(storage.ErrStoreConsistency, "block %d/%d", epoch, round)
		}
		return nil
	}

	if err := s.db.Set(k, v, pebble.Sync); err != nil {
		s.wmu.Unlock()
		return storage.NewIOError("writing block", err)
	}
	s.cache.Add(string(k), v)
	s.filter.Add(k)
	s.wmu.Unlock()

	s.cfg.logger.WithField("block", b.ID.ShortString()).Debugf("stored block %d/%d", epoch, round)

	return nil
}

func (s *PebbleStore) GetBlock(_ context.Context, epoch, round uint64) (*types.Block, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	k := typedKey(blockTPrefix, epoch, round)
	if !s.filter.MayContain(k) {
		return nil, nil
	}

	v, err := s.getRaw(k)
	if err != nil || v == nil {
		return nil, err
	}

	return s.decodeBlock(v)
}

func (s *PebbleStore) PutQC(_ context.Context, epoch, round uint64, qc *consensus.QuorumCertificate) error {
	if err := storage.CheckQCKey(epoch, round, qc); err != nil {
		return err
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	v, err := qc.Marshal()
	if err != nil {
		return err
	}

	return s.write([2][]byte{typedKey(qcTPrefix, epoch, round), v})
}

func (s *PebbleStore) GetQC(_ context.Context, epoch, round uint64) (*consensus.QuorumCertificate, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	v, err := s.getRaw(typedKey(qcTPrefix, epoch, round))
	if err != nil || v == nil {
		return nil, err
	}

	return consensus.UnmarshalQuorumCertificate(v)
}

// PutLedgerInfo writes the ledger info and its next epoch state in one
// synced batch
func (s *PebbleStore) PutLedgerInfo(_ context.Context, epoch uint64, li *types.LedgerInfo) error {
	if err := storage.CheckLedgerInfoKey(epoch, li); err != nil {
		return err
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	liv, err := types.Encode(li)
	if err != nil {
		return errors.Wrap(err, "encoding ledger info")
	}

	next := li.CommitInfo.NextEpochState
	esv, err := types.Encode(next)
	if err != nil {
		return errors.Wrap(err, "encoding epoch state")
	}

	return s.write(
		[2][]byte{typedKey(ledgerInfoTPrefix, epoch), liv},
		[2][]byte{typedKey(epochStateTPrefix, next.Epoch), esv},
	)
}

func (s *PebbleStore) GetLedgerInfoByEpoch(_ context.Context, epoch uint64) (*types.LedgerInfo, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	v, err := s.getRaw(typedKey(ledgerInfoTPrefix, epoch))
	if err != nil || v == nil {
		return nil, err
	}

	li := &types.LedgerInfo{}
	if err := types.Decode(v, li); err != nil {
		return nil, errors.Wrap(err, "decoding ledger info")
	}

	return li, nil
}

func (s *PebbleStore) PutEpochState(_ context.Context, es *types.EpochState) error {
	if es == nil {
		return errors.Wrap(storage.ErrKeyMismatch, "nil epoch state")
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	v, err := types.Encode(es)
	if err != nil {
		return errors.Wrap(err, "encoding epoch state")
	}

	return s.write([2][]byte{typedKey(epochStateTPrefix, es.Epoch), v})
}

func (s *PebbleStore) GetEpochState(_ context.Context, epoch uint64) (*types.EpochState, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	v, err := s.getRaw(typedKey(epochStateTPrefix, epoch))
	if err != nil || v == nil {
		return nil, err
	}

	es := &types.EpochState{}
	if err := types.Decode(v, es); err != nil {
		return nil, errors.Wrap(err, "decoding epoch state")
	}

	return es, nil
}

func (s *PebbleStore) GetValidatorCountByEpoch(ctx context.Context, epoch uint64) (uint64, bool, error) {
	es, err := s.GetEpochState(ctx, epoch)
	if err != nil || es == nil {
		return 0, false, err
	}

	return uint64(len(es.Validators)), true, nil
}

func (s *PebbleStore) PutRandomness(_ context.Context, blockNumber uint64, seed types.RandomnessSeed) error {
	if len(seed) == 0 {
		return errors.Wrapf(storage.ErrEmptySeed, "block %d", blockNumber)
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	return s.write([2][]byte{typedKey(randomnessTPrefix, blockNumber), append([]byte(nil), seed...)})
}

func (s *PebbleStore) GetRandomness(_ context.Context, blockNumber uint64) (types.RandomnessSeed, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	v, err := s.getRaw(typedKey(randomnessTPrefix, blockNumber))
	if err != nil || v == nil {
		return nil, err
	}

	return types.RandomnessSeed(append([]byte(nil), v...)), nil
}

// lastValue returns the value under the highest key of a prefix
func (s *PebbleStore) lastValue(kType keyType) ([]byte, error) {
	iter := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{byte(kType)},
		UpperBound: []byte{byte(kType) + 1},
	})
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, storage.NewIOError("seeking last record", err)
		}
		return nil, nil
	}

	return append([]byte(nil), iter.Value()...), nil
}

func (s *PebbleStore) LatestLedgerInfo(_ context.Context) (*types.LedgerInfo, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	var latest *types.LedgerInfo

	qcv, err := s.lastValue(qcTPrefix)
	if err != nil {
		return nil, err
	}
	if qcv != nil {
		qc, err := consensus.UnmarshalQuorumCertificate(qcv)
		if err != nil {
			return nil, err
		}
		latest = &qc.LedgerInfo
	}

	liv, err := s.lastValue(ledgerInfoTPrefix)
	if err != nil {
		return nil, err
	}
	if liv != nil {
		li := &types.LedgerInfo{}
		if err := types.Decode(liv, li); err != nil {
			return nil, errors.Wrap(err, "decoding ledger info")
		}
		if latest == nil || latest.Less(li) {
			latest = li
		}
	}

	return latest, nil
}

func (s *PebbleStore) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.enc.Close()
	s.dec.Close()

	if err := s.db.Close(); err != nil {
		return storage.NewIOError("closing pebble", err)
	}

	return nil
}
