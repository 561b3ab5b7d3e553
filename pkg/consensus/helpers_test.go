package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator/validatortest"
)

func testLedgerInfo(epoch, round uint64, tag byte) types.LedgerInfo {
	return types.NewLedgerInfo(types.BlockInfo{
		Epoch:           epoch,
		Round:           round,
		ID:              types.HashOf([]byte{'b', tag}),
		ExecutedStateID: types.HashOf([]byte{'s', tag}),
		Version:         round * 10,
		TimestampUsecs:  1665700000000000 + round,
	}, types.HashOf([]byte{'c', tag}))
}

func testVote(t *testing.T, set *validatortest.Set, i int, li types.LedgerInfo) *CommitVote {
	t.Helper()

	s := set.Signers[i]
	v, err := NewCommitVote(s.Author, li, s.Key)
	require.NoError(t, err)

	return v
}
