package storage

import (
	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
)

// CheckBlockKey makes sure a block is stored under its own coordinates
func CheckBlockKey(epoch, round uint64, b *types.Block) error {
	if b == nil {
		return errors.Wrap(ErrKeyMismatch, "nil block")
	}
	if b.Epoch != epoch || b.Round != round {
		return errors.Wrapf(ErrKeyMismatch, "block %d/%d under key %d/%d", b.Epoch, b.Round, epoch, round)
	}
	return nil
}

func CheckQCKey(epoch, round uint64, qc *consensus.QuorumCertificate) error {
	if qc == nil {
		return errors.Wrap(ErrKeyMismatch, "nil quorum certificate")
	}
	if qc.Epoch() != epoch || qc.Round() != round {
		return errors.Wrapf(ErrKeyMismatch, "qc %d/%d under key %d/%d", qc.Epoch(), qc.Round(), epoch, round)
	}
	return nil
}

func CheckLedgerInfoKey(epoch uint64, li *types.LedgerInfo) error {
	if li == nil {
		return errors.Wrap(ErrKeyMismatch, "nil ledger info")
	}
	if li.Epoch() != epoch {
		return errors.Wrapf(ErrKeyMismatch, "ledger info of epoch %d under key %d", li.Epoch(), epoch)
	}
	if !li.CommitInfo.EndsEpoch() {
		return errors.Wrapf(ErrKeyMismatch, "ledger info %s does not end the epoch", li.String())
	}
	if li.CommitInfo.NextEpochState.Epoch != epoch+1 {
		return errors.Wrapf(ErrKeyMismatch, "next epoch state is for epoch %d", li.CommitInfo.NextEpochState.Epoch)
	}
	return nil
}
