package consensus

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
)

// QuorumCertificate is the aggregated proof that a quorum of an epoch's
// voting power signed LedgerInfo. Signers are in validator index order.
type QuorumCertificate struct {
	LedgerInfo types.LedgerInfo `msgpack:"li" json:"ledger_info"`
	Signers    []types.Author   `msgpack:"sn" json:"signers"`
	Signature  []byte           `msgpack:"s" json:"signature"`
}

func (qc *QuorumCertificate) Epoch() uint64 {
	return qc.LedgerInfo.Epoch()
}

func (qc *QuorumCertificate) Round() uint64 {
	return qc.LedgerInfo.Round()
}

func (qc *QuorumCertificate) CommitInfo() types.BlockInfo {
	return qc.LedgerInfo.CommitInfo
}

// Verify checks a certificate read back from storage or the network
// against the epoch it claims to certify
func (qc *QuorumCertificate) Verify(verifier *validator.Verifier) error {
	if qc.Epoch() != verifier.Epoch() {
		return errors.Wrapf(ErrEpochMismatch, "qc epoch %d, verifier epoch %d", qc.Epoch(), verifier.Epoch())
	}

	if err := verifier.CheckVotingPower(qc.Signers); err != nil {
		return &QCError{Err: err}
	}

	msg, err := qc.LedgerInfo.SigningBytes()
	if err != nil {
		return errors.Wrap(err, "encoding ledger info")
	}

	if err := verifier.VerifyAggregate(qc.Signers, msg, qc.Signature); err != nil {
		return &QCError{Err: errors.Wrap(err, "verifying qc aggregate signature")}
	}

	return nil
}

func (qc *QuorumCertificate) Marshal() ([]byte, error) {
	return types.Encode(qc)
}

func UnmarshalQuorumCertificate(b []byte) (*QuorumCertificate, error) {
	qc := &QuorumCertificate{}
	if err := types.Decode(b, qc); err != nil {
		return nil, errors.Wrap(err, "unmarshalling quorum certificate")
	}
	return qc, nil
}

func (qc *QuorumCertificate) String() string {
	return fmt.Sprintf("QuorumCertificate: [signers: %d, %s]", len(qc.Signers), qc.LedgerInfo.String())
}
