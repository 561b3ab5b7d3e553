// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
)

type Factory func(t *testing.T) storage.Store

func Block(t testing.TB, epoch, round uint64, payload string) *types.Block {
	t.Helper()

	b, err := types.NewBlock(epoch, round, types.HashOf([]byte("parent"), []byte(payload)), nil, 1665700000000000+round, []byte(payload))
	require.NoError(t, err)

	return b
}

func LedgerInfo(epoch, round uint64, next *types.EpochState) *types.LedgerInfo {
	li := types.NewLedgerInfo(types.BlockInfo{
		Epoch:           epoch,
		Round:           round,
		ID:              types.HashOf([]byte("block"), []byte{byte(epoch), byte(round)}),
		ExecutedStateID: types.HashOf([]byte("state"), []byte{byte(epoch), byte(round)}),
		Version:         epoch*1000 + round,
		TimestampUsecs:  1665700000000000 + round,
		NextEpochState:  next,
	}, types.HashOf([]byte("consensus"), []byte{byte(epoch), byte(round)}))

	return &li
}

func EpochState(epoch uint64, validators int) *types.EpochState {
	s := &types.EpochState{Epoch: epoch}
	for i := 0; i < validators; i++ {
		pk := []byte{byte(epoch), byte(i), 0xaa}
		s.Validators = append(s.Validators, types.ValidatorConsensusInfo{
			Address:     types.AuthorFromPublicKey(pk),
			PublicKey:   pk,
			VotingPower: 10,
			Index:       uint64(i),
		})
	}
	return s
}

// QC builds a structurally complete certificate. Stores do not verify
// signatures so the signature is opaque bytes.
func QC(epoch, round uint64) *consensus.QuorumCertificate {
	return &consensus.QuorumCertificate{
		LedgerInfo: *LedgerInfo(epoch, round, nil),
		Signers: []types.Author{
			types.AuthorFromPublicKey([]byte{1}),
			types.AuthorFromPublicKey([]byte{2}),
		},
		Signature: []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func Run(t *testing.T, newStore Factory) {
	t.Run("blocks", func(t *testing.T) { testBlocks(t, newStore(t)) })
	t.Run("quorum certificates", func(t *testing.T) { testQCs(t, newStore(t)) })
	t.Run("ledger infos", func(t *testing.T) { testLedgerInfos(t, newStore(t)) })
	t.Run("randomness", func(t *testing.T) { testRandomness(t, newStore(t)) })
	t.Run("latest ledger info", func(t *testing.T) { testLatest(t, newStore(t)) })
	t.Run("key mismatch", func(t *testing.T) { testKeyMismatch(t, newStore(t)) })
	t.Run("concurrent readers", func(t *testing.T) { testConcurrentReaders(t, newStore(t)) })
}

func testBlocks(t *testing.T, s storage.Store) {
	ctx := context.Background()

	missing, err := s.GetBlock(ctx, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	b := Block(t, 1, 1, "payload")
	require.NoError(t, s.PutBlock(ctx, 1, 1, b))

	got, err := s.GetBlock(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, b.Equal(got))

	// identical rewrite is idempotent
	assert.NoError(t, s.PutBlock(ctx, 1, 1, b))

	err = s.PutBlock(ctx, 1, 1, Block(t, 1, 1, "other payload"))
	assert.True(t, errors.Is(err, storage.ErrStoreConsistency))

	got, err = s.GetBlock(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, b.Equal(got))

	missing, err = s.GetBlock(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testQCs(t *testing.T, s storage.Store) {
	ctx := context.Background()

	missing, err := s.GetQC(ctx, 2, 3)
	require.NoError(t, err)
	assert.Nil(t, missing)

	qc := QC(2, 3)
	require.NoError(t, s.PutQC(ctx, 2, 3, qc))

	got, err := s.GetQC(ctx, 2, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, qc, got)

	other := QC(2, 3)
	other.Signature = []byte{1}
	assert.True(t, errors.Is(s.PutQC(ctx, 2, 3, other), storage.ErrStoreConsistency))
}

func testLedgerInfos(t *testing.T, s storage.Store) {
	ctx := context.Background()

	missing, err := s.GetLedgerInfoByEpoch(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, ok, err := s.GetValidatorCountByEpoch(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutEpochState(ctx, EpochState(1, 4)))

	li := LedgerInfo(1, 9, EpochState(2, 5))
	require.NoError(t, s.PutLedgerInfo(ctx, 1, li))

	got, err := s.GetLedgerInfoByEpoch(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, li.Equal(got))

	n, ok, err := s.GetValidatorCountByEpoch(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(4), n)

	n, ok, err = s.GetValidatorCountByEpoch(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), n)

	es, err := s.GetEpochState(ctx, 2)
	require.NoError(t, err)
	assert.True(t, es.Equal(EpochState(2, 5)))

	assert.NoError(t, s.PutLedgerInfo(ctx, 1, li))
	err = s.PutLedgerInfo(ctx, 1, LedgerInfo(1, 10, EpochState(2, 5)))
	assert.True(t, errors.Is(err, storage.ErrStoreConsistency))
}

func testRandomness(t *testing.T, s storage.Store) {
	ctx := context.Background()

	missing, err := s.GetRandomness(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	seed := types.RandomnessSeed{1, 2, 3, 4}
	require.NoError(t, s.PutRandomness(ctx, 42, seed))

	got, err := s.GetRandomness(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	assert.True(t, errors.Is(s.PutRandomness(ctx, 42, types.RandomnessSeed{9}), storage.ErrStoreConsistency))

	assert.True(t, errors.Is(s.PutRandomness(ctx, 43, types.RandomnessSeed{}), storage.ErrEmptySeed))
	assert.True(t, errors.Is(s.PutRandomness(ctx, 43, nil), storage.ErrEmptySeed))

	empty, err := s.GetRandomness(ctx, 43)
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, s.PutRandomness(ctx, 43, types.RandomnessSeed{5}))
}

func testLatest(t *testing.T, s storage.Store) {
	ctx := context.Background()

	latest, err := s.LatestLedgerInfo(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.PutQC(ctx, 1, 4, QC(1, 4)))
	require.NoError(t, s.PutQC(ctx, 1, 2, QC(1, 2)))

	latest, err = s.LatestLedgerInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(1), latest.Epoch())
	assert.Equal(t, uint64(4), latest.Round())

	li := LedgerInfo(1, 7, EpochState(2, 3))
	require.NoError(t, s.PutLedgerInfo(ctx, 1, li))

	latest, err = s.LatestLedgerInfo(ctx)
	require.NoError(t, err)
	assert.True(t, li.Equal(latest))

	require.NoError(t, s.PutQC(ctx, 2, 1, QC(2, 1)))

	latest, err = s.LatestLedgerInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Epoch())
	assert.Equal(t, uint64(1), latest.Round())
}

func testKeyMismatch(t *testing.T, s storage.Store) {
	ctx := context.Background()

	assert.True(t, errors.Is(s.PutBlock(ctx, 1, 2, Block(t, 1, 1, "x")), storage.ErrKeyMismatch))
	assert.True(t, errors.Is(s.PutQC(ctx, 3, 1, QC(1, 1)), storage.ErrKeyMismatch))
	assert.True(t, errors.Is(s.PutLedgerInfo(ctx, 1, LedgerInfo(1, 1, nil)), storage.ErrKeyMismatch))
	assert.True(t, errors.Is(s.PutLedgerInfo(ctx, 2, LedgerInfo(1, 1, EpochState(2, 1))), storage.ErrKeyMismatch))
}

func testConcurrentReaders(t *testing.T, s storage.Store) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for r := uint64(1); r <= 20; r++ {
		require.NoError(t, s.PutBlock(ctx, 1, r, Block(t, 1, r, "p")))

		wg.Add(1)
		go func(r uint64) {
			defer wg.Done()

			b, err := s.GetBlock(ctx, 1, r)
			assert.NoError(t, err)
			assert.NotNil(t, b)
		}(r)
	}
	wg.Wait()
}
