package consensus

import (
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
)

type AggregatorOption func(*Aggregator)

// WithTarget only accepts votes for li, the locally executed result
func WithTarget(li types.LedgerInfo) AggregatorOption {
	return func(a *Aggregator) {
		a.target = &li
	}
}

type tally struct {
	ledgerInfo types.LedgerInfo
	power      *uint256.Int
}

// Aggregator collects the commit votes of one (epoch, round) and
// produces at most one QuorumCertificate
type Aggregator struct {
	epoch    uint64
	round    uint64
	verifier *validator.Verifier
	target   *types.LedgerInfo

	mu       sync.Mutex
	state    State
	votes    map[types.Author]*CommitVote
	tallies  map[types.HashValue]*tally
	evidence []*EquivocationError
	qc       *QuorumCertificate
}

func NewAggregator(verifier *validator.Verifier, round uint64, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		epoch:    verifier.Epoch(),
		round:    round,
		verifier: verifier,
		state:    StateCollecting,
		votes:    make(map[types.Author]*CommitVote),
		tallies:  make(map[types.HashValue]*tally),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Aggregator) Epoch() uint64 {
	return a.epoch
}

func (a *Aggregator) Round() uint64 {
	return a.round
}

func (a *Aggregator) AddVote(vote *CommitVote) (AddOutcome, error) {
	if vote.Epoch() != a.epoch || vote.Round() != a.round {
		return AddOutcome{}, errors.Wrapf(ErrRoundMismatch, "vote %d/%d, aggregator %d/%d", vote.Epoch(), vote.Round(), a.epoch, a.round)
	}

	if err := vote.Verify(a.verifier); err != nil {
		return AddOutcome{}, err
	}

	return a.addVerified(vote)
}

// addVerified records a vote already checked against a's verifier
func (a *Aggregator) addVerified(vote *CommitVote) (AddOutcome, error) {
	li := vote.LedgerInfo()
	liHash, err := li.Hash()
	if err != nil {
		return AddOutcome{}, errors.Wrap(err, "hashing ledger info")
	}

	power, err := a.verifier.VotingPower(vote.Author())
	if err != nil {
		return AddOutcome{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateAbandoned {
		return AddOutcome{}, errors.Wrapf(ErrAbandoned, "epoch %d round %d", a.epoch, a.round)
	}

	if prev, ok := a.votes[vote.Author()]; ok {
		prevLi := prev.LedgerInfo()
		if prevLi.Equal(&li) {
			return AddOutcome{Outcome: OutcomeDuplicate}, nil
		}

		ev := &EquivocationError{Author: vote.Author(), First: prev, Second: vote}
		a.evidence = append(a.evidence, ev)
		return AddOutcome{}, ev
	}

	if a.target != nil && !a.target.Equal(&li) {
		return AddOutcome{}, errors.Wrapf(ErrTargetMismatch, "author %s", vote.Author().ShortString())
	}

	a.votes[vote.Author()] = vote

	t, ok := a.tallies[liHash]
	if !ok {
		t = &tally{ledgerInfo: li, power: new(uint256.Int)}
		a.tallies[liHash] = t
	}
	t.power.AddUint64(t.power, power)

	if a.state == StateCertified {
		return AddOutcome{Outcome: OutcomeAlreadyCertified, Certificate: a.qc}, nil
	}

	if !a.verifier.MeetsQuorum(t.power) {
		return AddOutcome{Outcome: OutcomePending}, nil
	}

	qc, err := a.aggregate(liHash, t)
	if err != nil {
		return AddOutcome{}, errors.Wrap(err, "aggregating quorum certificate")
	}

	a.qc = qc
	a.state = StateCertified

	return AddOutcome{Outcome: OutcomeCertified, Certificate: qc}, nil
}

// bindTarget restricts a collecting round to li. Votes already recorded
// for other ledger infos stay counted but can no longer be joined.
func (a *Aggregator) bindTarget(li types.LedgerInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.target != nil {
		if !a.target.Equal(&li) {
			return errors.Wrapf(ErrTargetMismatch, "epoch %d round %d already bound", a.epoch, a.round)
		}
		return nil
	}

	if a.state != StateCollecting {
		return nil
	}

	a.target = &li
	return nil
}

// aggregate must be called with mu held
func (a *Aggregator) aggregate(liHash types.HashValue, t *tally) (*QuorumCertificate, error) {
	signers := make([]*CommitVote, 0, len(a.votes))
	for _, v := range a.votes {
		vli := v.LedgerInfo()
		if h, err := vli.Hash(); err == nil && h == liHash {
			signers = append(signers, v)
		}
	}

	order := make(map[types.Author]int, a.verifier.ValidatorCount())
	for i, author := range a.verifier.Authors() {
		order[author] = i
	}
	sort.Slice(signers, func(i, j int) bool {
		return order[signers[i].Author()] < order[signers[j].Author()]
	})

	qc := &QuorumCertificate{
		LedgerInfo: t.ledgerInfo,
		Signers:    make([]types.Author, 0, len(signers)),
	}

	sigs := make([][]byte, 0, len(signers))
	for _, v := range signers {
		qc.Signers = append(qc.Signers, v.Author())
		sigs = append(sigs, v.signature)
	}

	agg, err := cryptography.AggregateBls12381Signatures(sigs...)
	if err != nil {
		return nil, err
	}
	qc.Signature = agg

	return qc, nil
}

// Certificate returns the QC once certified. It never changes afterwards.
func (a *Aggregator) Certificate() (*QuorumCertificate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.qc, a.qc != nil
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Abandon marks a collecting round as superseded. Certified rounds keep
// their certificate. Returns true if the state changed.
func (a *Aggregator) Abandon() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateCollecting {
		return false
	}

	a.state = StateAbandoned
	return true
}

// VotingPower is the accumulated power behind li
func (a *Aggregator) VotingPower(li *types.LedgerInfo) *uint256.Int {
	h, err := li.Hash()
	if err != nil {
		return new(uint256.Int)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.tallies[h]
	if !ok {
		return new(uint256.Int)
	}
	return t.power.Clone()
}

func (a *Aggregator) VoteCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.votes)
}

// Evidence lists the equivocations seen in this round
func (a *Aggregator) Evidence() []*EquivocationError {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*EquivocationError, len(a.evidence))
	copy(out, a.evidence)
	return out
}
