package validator

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
)

type validatorEntry struct {
	info types.ValidatorConsensusInfo
	pk   *cryptography.Bls12381PublicKey
}

// Verifier is the immutable validator set of a single epoch. It is
// safe for concurrent use without locking.
type Verifier struct {
	epoch uint64

	validators map[types.Author]*validatorEntry
	ordered    []types.Author

	total  *uint256.Int
	quorum *uint256.Int
}

func NewVerifier(state *types.EpochState) (*Verifier, error) {
	if state == nil || len(state.Validators) == 0 {
		return nil, ErrEmptyValidatorSet
	}

	v := &Verifier{
		epoch:      state.Epoch,
		validators: make(map[types.Author]*validatorEntry, len(state.Validators)),
		ordered:    make([]types.Author, 0, len(state.Validators)),
		total:      new(uint256.Int),
	}

	infos := make([]types.ValidatorConsensusInfo, len(state.Validators))
	copy(infos, state.Validators)
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })

	for _, info := range infos {
		if _, ok := v.validators[info.Address]; ok {
			return nil, errors.Wrapf(ErrDuplicateValidator, "author %s", info.Address)
		}

		pk, err := cryptography.NewBls12381PublicKey(info.PublicKey)
		if err != nil {
			return nil, &PublicKeyError{Address: info.Address, Err: err}
		}

		info.PublicKey = append([]byte(nil), info.PublicKey...)
		v.validators[info.Address] = &validatorEntry{info: info, pk: pk}
		v.ordered = append(v.ordered, info.Address)
		v.total.AddUint64(v.total, info.VotingPower)
	}

	if v.total.IsZero() {
		return nil, ErrEmptyValidatorSet
	}

	v.quorum = QuorumThreshold(v.total)

	return v, nil
}

func (v *Verifier) Epoch() uint64 {
	return v.epoch
}

func (v *Verifier) lookup(author types.Author) (*validatorEntry, error) {
	e, ok := v.validators[author]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAuthor, "author %s in epoch %d", author.ShortString(), v.epoch)
	}
	return e, nil
}

func (v *Verifier) Contains(author types.Author) bool {
	_, ok := v.validators[author]
	return ok
}

func (v *Verifier) VerifySignature(author types.Author, msg, signature []byte) error {
	e, err := v.lookup(author)
	if err != nil {
		return err
	}

	if err := e.pk.Verify(signature, msg); err != nil {
		return &SignatureError{Author: author, Err: err}
	}

	return nil
}

// VerifyAggregate checks one aggregate signature against the combined
// public keys of authors. Authors must be distinct.
func (v *Verifier) VerifyAggregate(authors []types.Author, msg, aggregate []byte) error {
	if len(authors) == 0 {
		return errors.Wrap(ErrInvalidSignature, "no signers")
	}

	seen := make(map[types.Author]struct{}, len(authors))
	pks := make([]*cryptography.Bls12381PublicKey, 0, len(authors))

	for _, a := range authors {
		if _, ok := seen[a]; ok {
			return errors.Wrapf(ErrDuplicateValidator, "signer %s", a.ShortString())
		}
		seen[a] = struct{}{}

		e, err := v.lookup(a)
		if err != nil {
			return err
		}
		pks = append(pks, e.pk)
	}

	if err := cryptography.AggregateBls12381PublicKeys(pks...).Verify(aggregate, msg); err != nil {
		return &SignatureError{Err: err}
	}

	return nil
}

// VotingPowerOf sums the voting power of distinct authors. Unknown
// authors contribute nothing and are reported through the error while
// the partial sum is still returned.
func (v *Verifier) VotingPowerOf(authors []types.Author) (*uint256.Int, error) {
	sum := new(uint256.Int)
	seen := make(map[types.Author]struct{}, len(authors))

	var unknown error
	for _, a := range authors {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}

		e, err := v.lookup(a)
		if err != nil {
			if unknown == nil {
				unknown = err
			}
			continue
		}
		sum.AddUint64(sum, e.info.VotingPower)
	}

	return sum, unknown
}

func (v *Verifier) HasQuorum(authors []types.Author) bool {
	power, err := v.VotingPowerOf(authors)
	if err != nil {
		return false
	}
	return v.MeetsQuorum(power)
}

// CheckVotingPower is HasQuorum with the reason for failure
func (v *Verifier) CheckVotingPower(authors []types.Author) error {
	power, err := v.VotingPowerOf(authors)
	if err != nil {
		return err
	}

	if !v.MeetsQuorum(power) {
		return errors.Wrapf(ErrTooLittleVotingPower, "have %s, need %s", power.Dec(), v.quorum.Dec())
	}

	return nil
}

func (v *Verifier) MeetsQuorum(power *uint256.Int) bool {
	return !power.Lt(v.quorum)
}

func (v *Verifier) VotingPower(author types.Author) (uint64, error) {
	e, err := v.lookup(author)
	if err != nil {
		return 0, err
	}
	return e.info.VotingPower, nil
}

func (v *Verifier) PublicKey(author types.Author) (*cryptography.Bls12381PublicKey, error) {
	e, err := v.lookup(author)
	if err != nil {
		return nil, err
	}
	return e.pk, nil
}

// Index is the position of the author in the canonical validator order
func (v *Verifier) Index(author types.Author) (int, bool) {
	for i, a := range v.ordered {
		if a == author {
			return i, true
		}
	}
	return -1, false
}

func (v *Verifier) TotalVotingPower() *uint256.Int {
	return v.total.Clone()
}

func (v *Verifier) QuorumThreshold() *uint256.Int {
	return v.quorum.Clone()
}

func (v *Verifier) ValidatorCount() uint64 {
	return uint64(len(v.ordered))
}

// Authors is the validator set in canonical order
func (v *Verifier) Authors() []types.Author {
	out := make([]types.Author, len(v.ordered))
	copy(out, v.ordered)
	return out
}

// EpochState rebuilds the validator set this verifier was built from
func (v *Verifier) EpochState() *types.EpochState {
	s := &types.EpochState{
		Epoch:      v.epoch,
		Validators: make([]types.ValidatorConsensusInfo, 0, len(v.ordered)),
	}

	for _, a := range v.ordered {
		info := v.validators[a].info
		info.PublicKey = append([]byte(nil), info.PublicKey...)
		s.Validators = append(s.Validators, info)
	}

	return s
}
