package storage

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/storage/storagetest"
)

func newMemPebble(t *testing.T, opts ...Option) *PebbleStore {
	t.Helper()

	s, err := NewPebbleStore("ledger", append([]Option{WithInMemory()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestPebbleStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newMemPebble(t)
	})
}

func TestPebbleStoreUncompressed(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newMemPebble(t, WithBlockCompression(false), WithCacheEntries(1))
	})
}

func TestPebbleStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewPebbleStore(dir)
	require.NoError(t, err)

	b := storagetest.Block(t, 3, 8, "durable")
	require.NoError(t, s.PutBlock(ctx, 3, 8, b))
	require.NoError(t, s.PutQC(ctx, 3, 8, storagetest.QC(3, 8)))
	require.NoError(t, s.PutLedgerInfo(ctx, 3, storagetest.LedgerInfo(3, 8, storagetest.EpochState(4, 2))))
	require.NoError(t, s.Close())

	s, err = NewPebbleStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetBlock(ctx, 3, 8)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, b.Equal(got))

	latest, err := s.LatestLedgerInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(3), latest.Epoch())
	assert.Equal(t, uint64(8), latest.Round())

	n, ok, err := s.GetValidatorCountByEpoch(ctx, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), n)

	// the write once rule survives a restart
	err = s.PutBlock(ctx, 3, 8, storagetest.Block(t, 3, 8, "rewritten"))
	assert.True(t, errors.Is(err, storage.ErrStoreConsistency))
}

func TestPebbleStoreClosed(t *testing.T) {
	ctx := context.Background()

	s, err := NewPebbleStore("ledger", WithInMemory())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GetBlock(ctx, 1, 1)
	assert.True(t, errors.Is(err, storage.ErrClosed))

	err = s.PutQC(ctx, 1, 1, storagetest.QC(1, 1))
	assert.True(t, errors.Is(err, storage.ErrClosed))
}

func TestTypedKeyOrdering(t *testing.T) {
	a := typedKey(qcTPrefix, 1, 255)
	b := typedKey(qcTPrefix, 1, 256)
	c := typedKey(qcTPrefix, 2, 0)

	assert.Len(t, a, 17)
	assert.Equal(t, byte(qcTPrefix), a[0])
	assert.Less(t, string(a), string(b))
	assert.Less(t, string(b), string(c))
}
