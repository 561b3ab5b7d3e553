package commit

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/epoch"
	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator/validatortest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ledgerInfo(t *testing.T, b *types.Block, next *types.EpochState) types.LedgerInfo {
	t.Helper()

	return types.NewLedgerInfo(types.BlockInfo{
		Epoch:           b.Epoch,
		Round:           b.Round,
		ID:              b.ID,
		ExecutedStateID: types.HashOf([]byte("state"), b.ID.Bytes()),
		Version:         b.Round,
		TimestampUsecs:  b.TimestampUsecs,
		NextEpochState:  next,
	}, types.HashOf([]byte("consensus"), b.ID.Bytes()))
}

func block(t *testing.T, epoch, round uint64) *types.Block {
	t.Helper()

	b, err := types.NewBlock(epoch, round, types.HashOf([]byte{byte(round - 1)}), nil, 1665700000000000+round, []byte("txs"))
	require.NoError(t, err)
	return b
}

func certify(t *testing.T, set *validatortest.Set, li types.LedgerInfo) *consensus.QuorumCertificate {
	t.Helper()

	agg := consensus.NewAggregator(set.Verifier, li.Round())
	for _, s := range set.Signers {
		v, err := consensus.NewCommitVote(s.Author, li, s.Key)
		require.NoError(t, err)

		out, err := agg.AddVote(v)
		require.NoError(t, err)
		if out.Outcome == consensus.OutcomeCertified {
			return out.Certificate
		}
	}

	t.Fatal("no quorum")
	return nil
}

type flakyStore struct {
	*storage.MemStore

	failures int32
	calls    int32
	err      error
}

func (f *flakyStore) PutQC(ctx context.Context, epoch, round uint64, qc *consensus.QuorumCertificate) error {
	atomic.AddInt32(&f.calls, 1)
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return f.err
	}
	return f.MemStore.PutQC(ctx, epoch, round, qc)
}

func TestCommitPersistsRound(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := storage.NewMemStore()
	c := New(store)

	b := block(t, 1, 1)
	require.NoError(t, c.AddBlock(b))
	assert.Equal(t, 1, c.Pending())

	qc := certify(t, set, ledgerInfo(t, b, nil))
	require.NoError(t, c.Commit(ctx, qc))

	got, err := store.GetBlock(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, b.Equal(got))

	gotQC, err := store.GetQC(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, gotQC)
	assert.NoError(t, gotQC.Verify(set.Verifier))

	e, r, ok := c.LastCommitted()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), e)
	assert.Equal(t, uint64(1), r)
	assert.Equal(t, 0, c.Pending())
}

func TestCommitIsMonotonic(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	c := New(storage.NewMemStore())

	second := certify(t, set, ledgerInfo(t, block(t, 1, 2), nil))
	first := certify(t, set, ledgerInfo(t, block(t, 1, 1), nil))

	require.NoError(t, c.Commit(ctx, second))
	assert.True(t, errors.Is(c.Commit(ctx, first), ErrStale))
	assert.True(t, errors.Is(c.Commit(ctx, second), ErrStale))
	assert.True(t, errors.Is(c.AddBlock(block(t, 1, 2)), ErrStale))
}

func TestCommitReconfiguration(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	next := validatortest.NewSet(t, 2, 10, 20, 30)
	store := storage.NewMemStore()

	table := epoch.NewTable()
	require.NoError(t, table.Register(set.Verifier))

	pool, err := consensus.NewPool(table)
	require.NoError(t, err)

	c := New(store, WithEpochRegistry(table), WithCertifier(pool))

	b := block(t, 1, 5)
	li := ledgerInfo(t, b, next.State)
	for i, s := range set.Signers[:2] {
		v, err := consensus.NewCommitVote(s.Author, ledgerInfo(t, block(t, 1, 4), nil), s.Key)
		require.NoError(t, err)
		_, err = pool.AddVote(v)
		require.NoError(t, err, "vote %d", i)
	}
	assert.Equal(t, 1, pool.Len())

	require.NoError(t, c.Commit(ctx, certify(t, set, li)))

	stored, err := store.GetLedgerInfoByEpoch(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(&li))

	n, ok, err := store.GetValidatorCountByEpoch(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), n)

	v, err := table.ResolveEpoch(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), v.TotalVotingPower().Uint64())

	// the old epoch's open rounds are gone
	assert.Equal(t, 0, pool.Len())
}

func TestCommitRetriesStorageIO(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := &flakyStore{
		MemStore: storage.NewMemStore(),
		failures: 2,
		err:      storage.NewIOError("writing qc", io.ErrShortWrite),
	}

	c := New(store, WithRetry(time.Millisecond, 5*time.Millisecond, 3))

	qc := certify(t, set, ledgerInfo(t, block(t, 1, 1), nil))
	require.NoError(t, c.Commit(ctx, qc))
	assert.Equal(t, int32(3), atomic.LoadInt32(&store.calls))
	assert.NoError(t, c.Halted())
}

func TestCommitHaltsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := &flakyStore{
		MemStore: storage.NewMemStore(),
		failures: 100,
		err:      storage.NewIOError("writing qc", io.ErrUnexpectedEOF),
	}

	c := New(store, WithRetry(time.Millisecond, 2*time.Millisecond, 4))

	err := c.Commit(ctx, certify(t, set, ledgerInfo(t, block(t, 1, 1), nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrStorageIO))
	assert.Equal(t, int32(4), atomic.LoadInt32(&store.calls))
	assert.Error(t, c.Halted())

	_, _, ok := c.LastCommitted()
	assert.False(t, ok)

	err = c.Commit(ctx, certify(t, set, ledgerInfo(t, block(t, 1, 2), nil)))
	assert.True(t, errors.Is(err, ErrHalted))
}

func TestCommitDoesNotRetryConsistency(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := &flakyStore{
		MemStore: storage.NewMemStore(),
		failures: 100,
		err:      errors.Wrap(storage.ErrStoreConsistency, "qc 1/1"),
	}

	c := New(store, WithRetry(time.Millisecond, 2*time.Millisecond, 4))

	err := c.Commit(ctx, certify(t, set, ledgerInfo(t, block(t, 1, 1), nil)))
	assert.True(t, errors.Is(err, storage.ErrStoreConsistency))
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))
}

func TestCommitStoresRandomness(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := storage.NewMemStore()

	table := epoch.NewTable()
	table.SetRandomness(3, types.RandomnessSeed{7, 7, 7})

	c := New(store, WithRandomness(table))

	require.NoError(t, c.Commit(ctx, certify(t, set, ledgerInfo(t, block(t, 1, 3), nil))))

	seed, err := store.GetRandomness(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, types.RandomnessSeed{7, 7, 7}, seed)
}

func TestCommitSkipsEmptyRandomness(t *testing.T) {
	ctx := context.Background()
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := storage.NewMemStore()

	table := epoch.NewTable()
	table.SetRandomness(4, types.RandomnessSeed{})

	c := New(store, WithRandomness(table))

	require.NoError(t, c.Commit(ctx, certify(t, set, ledgerInfo(t, block(t, 1, 4), nil))))

	seed, err := store.GetRandomness(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, seed)
}

func TestRunCommitsCertifiedRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	store := storage.NewMemStore()

	table := epoch.NewTable()
	require.NoError(t, table.Register(set.Verifier))

	pool, err := consensus.NewPool(table)
	require.NoError(t, err)

	c := New(store, WithCertifier(pool))

	done := make(chan error)
	go func() {
		done <- c.Run(ctx)
	}()

	b := block(t, 1, 1)
	require.NoError(t, c.AddBlock(b))

	li := ledgerInfo(t, b, nil)
	for _, s := range set.Signers {
		v, err := consensus.NewCommitVote(s.Author, li, s.Key)
		require.NoError(t, err)
		_, err = pool.AddVote(v)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		qc, err := store.GetQC(ctx, 1, 1)
		return err == nil && qc != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestRunWithoutCertifier(t *testing.T) {
	c := New(storage.NewMemStore())
	assert.Equal(t, ErrNoCertificates, c.Run(context.Background()))
}
