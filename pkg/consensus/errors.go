package consensus

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/epoch"
	"github.com/tcfw/ledgercert/pkg/types"
)

var (
	ErrEquivocation   = errors.New("equivocation")
	ErrEpochMismatch  = errors.New("vote epoch does not match verifier epoch")
	ErrRoundMismatch  = errors.New("vote is for another epoch or round")
	ErrTargetMismatch = errors.New("vote is for a different ledger info than the target")
	ErrAbandoned      = errors.New("aggregator abandoned")
	ErrInvalidQC      = errors.New("invalid quorum certificate")

	// ErrUnknownEpoch is returned by the pool for votes of epochs the
	// provider cannot resolve
	ErrUnknownEpoch = epoch.ErrUnknownEpoch
)

// EquivocationError is the evidence of an author signing two different
// ledger infos for the same epoch and round
type EquivocationError struct {
	Author types.Author
	First  *CommitVote
	Second *CommitVote
}

func (e *EquivocationError) Error() string {
	return fmt.Sprintf("equivocation by %s at epoch %d round %d", e.Author.ShortString(), e.First.Epoch(), e.First.Round())
}

func (e *EquivocationError) Is(target error) bool {
	return target == ErrEquivocation
}

// QCError marks a certificate as invalid while keeping the reason
// matchable with errors.Is
type QCError struct {
	Err error
}

func (e *QCError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidQC, e.Err)
}

func (e *QCError) Is(target error) bool {
	return target == ErrInvalidQC
}

func (e *QCError) Unwrap() error {
	return e.Err
}
