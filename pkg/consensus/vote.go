package consensus

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder = (*CommitVote)(nil)
	_ msgpack.CustomDecoder = (*CommitVote)(nil)
)

// CommitVote is a validator's signed claim that a ledger info is final.
// It is immutable once created.
type CommitVote struct {
	author     types.Author
	ledgerInfo types.LedgerInfo
	signature  []byte
}

type commitVoteWire struct {
	Author     types.Author     `msgpack:"a"`
	LedgerInfo types.LedgerInfo `msgpack:"li"`
	Signature  []byte           `msgpack:"s"`
}

// NewCommitVote signs the ledger info. BLS signatures are deterministic so
// equal inputs give equal votes.
func NewCommitVote(author types.Author, li types.LedgerInfo, signer *cryptography.Bls12381PrivateKey) (*CommitVote, error) {
	msg, err := li.SigningBytes()
	if err != nil {
		return nil, errors.Wrap(err, "encoding ledger info")
	}

	sig, err := signer.Sign(nil, msg, nil)
	if err != nil {
		return nil, errors.Wrap(err, "signing ledger info")
	}

	return NewCommitVoteWithSignature(author, li, sig), nil
}

func NewCommitVoteWithSignature(author types.Author, li types.LedgerInfo, signature []byte) *CommitVote {
	return &CommitVote{
		author:     author,
		ledgerInfo: li,
		signature:  append([]byte(nil), signature...),
	}
}

func (v *CommitVote) Author() types.Author {
	return v.author
}

func (v *CommitVote) LedgerInfo() types.LedgerInfo {
	return v.ledgerInfo
}

func (v *CommitVote) Signature() []byte {
	return append([]byte(nil), v.signature...)
}

func (v *CommitVote) Epoch() uint64 {
	return v.ledgerInfo.Epoch()
}

func (v *CommitVote) Round() uint64 {
	return v.ledgerInfo.Round()
}

func (v *CommitVote) CommitInfo() types.BlockInfo {
	return v.ledgerInfo.CommitInfo
}

// Verify checks the author belongs to the verifier's epoch and the
// signature covers the exact bytes of the ledger info
func (v *CommitVote) Verify(verifier *validator.Verifier) error {
	if v.Epoch() != verifier.Epoch() {
		return errors.Wrapf(ErrEpochMismatch, "vote epoch %d, verifier epoch %d", v.Epoch(), verifier.Epoch())
	}

	msg, err := v.ledgerInfo.SigningBytes()
	if err != nil {
		return errors.Wrap(err, "encoding ledger info")
	}

	if err := verifier.VerifySignature(v.author, msg, v.signature); err != nil {
		return errors.Wrap(err, "failed to verify commit vote")
	}

	return nil
}

func (v *CommitVote) Equal(o *CommitVote) bool {
	if v == nil || o == nil {
		return v == o
	}

	return v.author == o.author &&
		v.ledgerInfo.Equal(&o.ledgerInfo) &&
		bytes.Equal(v.signature, o.signature)
}

func (v *CommitVote) Marshal() ([]byte, error) {
	return types.Encode(v)
}

func UnmarshalCommitVote(b []byte) (*CommitVote, error) {
	v := &CommitVote{}
	if err := types.Decode(b, v); err != nil {
		return nil, errors.Wrap(err, "unmarshalling commit vote")
	}
	return v, nil
}

func (v *CommitVote) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(&commitVoteWire{
		Author:     v.author,
		LedgerInfo: v.ledgerInfo,
		Signature:  v.signature,
	})
}

func (v *CommitVote) DecodeMsgpack(dec *msgpack.Decoder) error {
	w := &commitVoteWire{}
	if err := dec.Decode(w); err != nil {
		return err
	}

	v.author = w.Author
	v.ledgerInfo = w.LedgerInfo
	v.signature = w.Signature

	return nil
}

func (v *CommitVote) String() string {
	return fmt.Sprintf("CommitVote: [author: %s, %s]", v.author.ShortString(), v.ledgerInfo.String())
}
