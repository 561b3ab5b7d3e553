//go:generate go run github.com/vektra/mockery/v2 --name Provider

package epoch

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
)

var (
	ErrEpochExists  = errors.New("epoch already registered")
	ErrUnknownEpoch = errors.New("unknown epoch")
)

// Provider is the read only view of the DKG output
type Provider interface {
	ResolveEpoch(epoch uint64) (*validator.Verifier, error)
	RandomnessFor(blockNumber uint64) (types.RandomnessSeed, bool)
}

var (
	_ Provider = (*Table)(nil)
)

// Table is an epoch indexed set of verifiers. A registered epoch is
// never replaced so verifiers can be handed out without copying.
type Table struct {
	mu sync.RWMutex

	epochs     map[uint64]*validator.Verifier
	randomness map[uint64]types.RandomnessSeed
	latest     uint64
}

func NewTable() *Table {
	return &Table{
		epochs:     make(map[uint64]*validator.Verifier),
		randomness: make(map[uint64]types.RandomnessSeed),
	}
}

func (t *Table) Register(v *validator.Verifier) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.epochs[v.Epoch()]; ok {
		return errors.Wrapf(ErrEpochExists, "epoch %d", v.Epoch())
	}

	t.epochs[v.Epoch()] = v
	if v.Epoch() > t.latest {
		t.latest = v.Epoch()
	}

	return nil
}

// RegisterState builds and registers a verifier from a resolved epoch state
func (t *Table) RegisterState(s *types.EpochState) (*validator.Verifier, error) {
	v, err := validator.NewVerifier(s)
	if err != nil {
		return nil, errors.Wrapf(err, "building verifier for epoch %d", s.Epoch)
	}

	if err := t.Register(v); err != nil {
		return nil, err
	}

	return v, nil
}

func (t *Table) ResolveEpoch(epoch uint64) (*validator.Verifier, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.epochs[epoch]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEpoch, "epoch %d", epoch)
	}

	return v, nil
}

// Latest is the highest registered epoch
func (t *Table) Latest() (*validator.Verifier, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.epochs[t.latest]
	return v, ok
}

func (t *Table) SetRandomness(blockNumber uint64, seed types.RandomnessSeed) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.randomness[blockNumber] = append(types.RandomnessSeed(nil), seed...)
}

func (t *Table) RandomnessFor(blockNumber uint64) (types.RandomnessSeed, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.randomness[blockNumber]
	if !ok {
		return nil, false
	}

	return append(types.RandomnessSeed(nil), r...), true
}
