package consensus

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/ledgercert/pkg/validator"
	"github.com/tcfw/ledgercert/pkg/validator/validatortest"
)

func TestCommitVoteIsDeterministic(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := testLedgerInfo(1, 5, 1)

	a := testVote(t, set, 0, li)
	b := testVote(t, set, 0, li)

	assert.True(t, a.Equal(b))
	assert.Equal(t, uint64(1), a.Epoch())
	assert.Equal(t, uint64(5), a.Round())
	assert.Equal(t, li.CommitInfo.ID, a.CommitInfo().ID)
	assert.Equal(t, set.Signers[0].Author, a.Author())
}

func TestCommitVoteVerify(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := testLedgerInfo(1, 5, 1)

	v := testVote(t, set, 1, li)
	assert.NoError(t, v.Verify(set.Verifier))
}

func TestCommitVoteUnknownAuthor(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	other := validatortest.NewSet(t, 1, 10, 10, 10, 10, 10)
	li := testLedgerInfo(1, 5, 1)

	v := testVote(t, other, 4, li)

	err := v.Verify(set.Verifier)
	assert.True(t, errors.Is(err, validator.ErrUnknownAuthor))
}

func TestCommitVoteTampering(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := testLedgerInfo(1, 5, 1)
	v := testVote(t, set, 0, li)

	t.Run("signature", func(t *testing.T) {
		sig := v.Signature()
		sig[len(sig)-1] ^= 0x01

		tampered := NewCommitVoteWithSignature(v.Author(), v.LedgerInfo(), sig)
		assert.True(t, errors.Is(tampered.Verify(set.Verifier), validator.ErrInvalidSignature))
	})

	t.Run("ledger info", func(t *testing.T) {
		tli := v.LedgerInfo()
		tli.ConsensusDataHash[0] ^= 0x01

		tampered := NewCommitVoteWithSignature(v.Author(), tli, v.Signature())
		assert.True(t, errors.Is(tampered.Verify(set.Verifier), validator.ErrInvalidSignature))
	})

	t.Run("serialized ledger info", func(t *testing.T) {
		b, err := v.Marshal()
		require.NoError(t, err)

		// flip a byte inside the consensus data hash of the encoded vote
		h := li.ConsensusDataHash
		idx := bytes.Index(b, h[:])
		require.Greater(t, idx, 0)
		b[idx] ^= 0x01

		decoded, err := UnmarshalCommitVote(b)
		require.NoError(t, err)
		assert.True(t, errors.Is(decoded.Verify(set.Verifier), validator.ErrInvalidSignature))
	})
}

func TestCommitVoteEpochMismatch(t *testing.T) {
	set := validatortest.NewSet(t, 2, 25, 25, 25, 25)
	li := testLedgerInfo(1, 5, 1)
	v := testVote(t, set, 0, li)

	assert.True(t, errors.Is(v.Verify(set.Verifier), ErrEpochMismatch))
}

func TestCommitVoteWireRoundTrip(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	v := testVote(t, set, 2, testLedgerInfo(1, 9, 3))

	b, err := v.Marshal()
	require.NoError(t, err)

	again, err := v.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, again)

	decoded, err := UnmarshalCommitVote(b)
	require.NoError(t, err)
	assert.True(t, v.Equal(decoded))
	assert.NoError(t, decoded.Verify(set.Verifier))
}

func TestQuorumCertificateVerify(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := testLedgerInfo(1, 3, 1)
	agg := NewAggregator(set.Verifier, 3)

	var qc *QuorumCertificate
	for i := 0; i < 3; i++ {
		out, err := agg.AddVote(testVote(t, set, i, li))
		require.NoError(t, err)
		qc = out.Certificate
	}
	require.NotNil(t, qc)
	assert.NoError(t, qc.Verify(set.Verifier))

	b, err := qc.Marshal()
	require.NoError(t, err)
	decoded, err := UnmarshalQuorumCertificate(b)
	require.NoError(t, err)
	assert.NoError(t, decoded.Verify(set.Verifier))

	short := &QuorumCertificate{LedgerInfo: qc.LedgerInfo, Signers: qc.Signers[:2], Signature: qc.Signature}
	assert.True(t, errors.Is(short.Verify(set.Verifier), ErrInvalidQC))

	forged := &QuorumCertificate{LedgerInfo: testLedgerInfo(1, 3, 2), Signers: qc.Signers, Signature: qc.Signature}
	assert.Error(t, forged.Verify(set.Verifier))

	next := validatortest.NewSet(t, 2, 25, 25, 25, 25)
	assert.True(t, errors.Is(qc.Verify(next.Verifier), ErrEpochMismatch))
}


func TestQuorumCertificateErrorsKeepCause(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := testLedgerInfo(1, 3, 1)
	agg := NewAggregator(set.Verifier, 3)

	var qc *QuorumCertificate
	for i := 0; i < 3; i++ {
		out, err := agg.AddVote(testVote(t, set, i, li))
		require.NoError(t, err)
		qc = out.Certificate
	}
	require.NotNil(t, qc)

	short := &QuorumCertificate{LedgerInfo: qc.LedgerInfo, Signers: qc.Signers[:2], Signature: qc.Signature}
	err := short.Verify(set.Verifier)
	assert.ErrorIs(t, err, ErrInvalidQC)
	assert.ErrorIs(t, err, validator.ErrTooLittleVotingPower)

	var qcErr *QCError
	require.ErrorAs(t, err, &qcErr)

	other := validatortest.NewSet(t, 1, 25)
	unknown := &QuorumCertificate{LedgerInfo: qc.LedgerInfo, Signers: append(qc.Signers[:2:2], other.Signers[0].Author), Signature: qc.Signature}
	err = unknown.Verify(set.Verifier)
	assert.ErrorIs(t, err, ErrInvalidQC)
	assert.ErrorIs(t, err, validator.ErrUnknownAuthor)

	forged := &QuorumCertificate{LedgerInfo: testLedgerInfo(1, 3, 2), Signers: qc.Signers, Signature: qc.Signature}
	err = forged.Verify(set.Verifier)
	assert.ErrorIs(t, err, ErrInvalidQC)
	assert.ErrorIs(t, err, validator.ErrInvalidSignature)
}
