package storage

import (
	"context"

	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
)

// Reader is the read side of the ledger store. Missing records are
// returned as nil with a nil error; errors are reserved for I/O and
// decoding failures.
type Reader interface {
	GetBlock(ctx context.Context, epoch, round uint64) (*types.Block, error)
	GetQC(ctx context.Context, epoch, round uint64) (*consensus.QuorumCertificate, error)
	GetLedgerInfoByEpoch(ctx context.Context, epoch uint64) (*types.LedgerInfo, error)
	GetEpochState(ctx context.Context, epoch uint64) (*types.EpochState, error)
	GetValidatorCountByEpoch(ctx context.Context, epoch uint64) (uint64, bool, error)
	GetRandomness(ctx context.Context, blockNumber uint64) (types.RandomnessSeed, error)

	// LatestLedgerInfo is the highest (epoch, round) ledger info seen in
	// either a stored certificate or an epoch ending ledger info
	LatestLedgerInfo(ctx context.Context) (*types.LedgerInfo, error)
}

// Writer persists records durably before returning. Each key is write
// once: rewriting identical content succeeds, anything else fails with
// ErrStoreConsistency and leaves the stored record untouched.
type Writer interface {
	PutBlock(ctx context.Context, epoch, round uint64, b *types.Block) error
	PutQC(ctx context.Context, epoch, round uint64, qc *consensus.QuorumCertificate) error

	// PutLedgerInfo stores the epoch ending ledger info of epoch along
	// with the epoch state it hands over to
	PutLedgerInfo(ctx context.Context, epoch uint64, li *types.LedgerInfo) error
	PutEpochState(ctx context.Context, s *types.EpochState) error
	PutRandomness(ctx context.Context, blockNumber uint64, seed types.RandomnessSeed) error
}

type Store interface {
	Reader
	Writer

	Close() error
}
