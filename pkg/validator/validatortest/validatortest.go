// Package validatortest builds deterministic validator sets for tests.
package validatortest

import (
	"testing"

	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
)

type Signer struct {
	Author types.Author
	Key    *cryptography.Bls12381PrivateKey
	Power  uint64
}

type Set struct {
	Epoch    uint64
	Signers  []*Signer
	State    *types.EpochState
	Verifier *validator.Verifier
}

// NewSet creates one validator per voting power. Keys are derived from
// the epoch and position so repeated calls give identical sets.
func NewSet(t testing.TB, epoch uint64, powers ...uint64) *Set {
	t.Helper()

	s := &Set{
		Epoch: epoch,
		State: &types.EpochState{Epoch: epoch},
	}

	for i, p := range powers {
		seed := make([]byte, 32)
		seed[0] = byte(i + 1)
		seed[1] = byte(epoch)
		seed[2] = byte(epoch >> 8)

		sk, err := cryptography.NewBls12381PrivateKeyFromSeed(seed)
		if err != nil {
			t.Fatal(err)
		}

		pkb, err := sk.PublicKey().Bytes()
		if err != nil {
			t.Fatal(err)
		}

		author := types.AuthorFromPublicKey(pkb)

		s.Signers = append(s.Signers, &Signer{Author: author, Key: sk, Power: p})
		s.State.Validators = append(s.State.Validators, types.ValidatorConsensusInfo{
			Address:     author,
			PublicKey:   pkb,
			VotingPower: p,
			Index:       uint64(i),
		})
	}

	v, err := validator.NewVerifier(s.State)
	if err != nil {
		t.Fatal(err)
	}
	s.Verifier = v

	return s
}

func (s *Set) Authors(idx ...int) []types.Author {
	out := make([]types.Author, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Signers[i].Author)
	}
	return out
}
