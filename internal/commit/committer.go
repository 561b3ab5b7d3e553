package commit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/epoch"
	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
)

const (
	defaultMinDelay    = 100 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
	defaultMaxAttempts = 5
)

type roundKey struct {
	epoch uint64
	round uint64
}

func (k roundKey) less(o roundKey) bool {
	if k.epoch != o.epoch {
		return k.epoch < o.epoch
	}
	return k.round < o.round
}

// Committer persists certified rounds one at a time in increasing
// (epoch, round) order. A round is final only once its block, QC and,
// for reconfigurations, its ledger info are durably stored. Persistent
// failures halt the committer rather than skipping the round.
type Committer struct {
	store      storage.Writer
	epochs     EpochRegistry
	randomness RandomnessSource
	pool       Certifier
	logger     *logrus.Entry

	minDelay    time.Duration
	maxDelay    time.Duration
	maxAttempts int

	// commitMu serialises Commit so round r+1 is never written before r
	commitMu sync.Mutex

	mu     sync.Mutex
	blocks map[roundKey]*types.Block
	last   *roundKey
	halted error
}

func New(store storage.Writer, opts ...Option) *Committer {
	l := logrus.New()
	l.SetOutput(io.Discard)

	c := &Committer{
		store:       store,
		logger:      logrus.NewEntry(l),
		minDelay:    defaultMinDelay,
		maxDelay:    defaultMaxDelay,
		maxAttempts: defaultMaxAttempts,
		blocks:      make(map[roundKey]*types.Block),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}

	return c
}

// AddBlock holds an executed block until its round is certified
func (c *Committer) AddBlock(b *types.Block) error {
	k := roundKey{b.Epoch, b.Round}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && !c.last.less(k) {
		return errors.Wrapf(ErrStale, "block %d/%d", b.Epoch, b.Round)
	}

	c.blocks[k] = b
	return nil
}

func (c *Committer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.blocks)
}

// Halted returns the error that stopped the committer, if any
func (c *Committer) Halted() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.halted
}

// LastCommitted is the highest durably persisted round
func (c *Committer) LastCommitted() (epoch, round uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return 0, 0, false
	}
	return c.last.epoch, c.last.round, true
}

// Run drains certificates until ctx is done or the committer halts
func (c *Committer) Run(ctx context.Context) error {
	if c.pool == nil {
		return ErrNoCertificates
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case qc := <-c.pool.Certified():
			err := c.Commit(ctx, qc)
			if errors.Is(err, ErrStale) {
				c.logger.WithError(err).Debug("skipping stale certificate")
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}

func (c *Committer) Commit(ctx context.Context, qc *consensus.QuorumCertificate) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	k := roundKey{qc.Epoch(), qc.Round()}
	l := c.logger.WithFields(logrus.Fields{"epoch": k.epoch, "round": k.round})

	c.mu.Lock()
	if c.halted != nil {
		err := c.halted
		c.mu.Unlock()
		return errors.Wrap(ErrHalted, err.Error())
	}
	if c.last != nil && !c.last.less(k) {
		c.mu.Unlock()
		return errors.Wrapf(ErrStale, "qc %d/%d", k.epoch, k.round)
	}
	block := c.blocks[k]
	c.mu.Unlock()

	if err := c.retry(ctx, l, func() error { return c.persist(ctx, k, block, qc) }); err != nil {
		if ctx.Err() == nil {
			l.WithError(err).Error("halting after persistence failure")

			c.mu.Lock()
			c.halted = err
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	c.last = &k
	for bk := range c.blocks {
		if !k.less(bk) {
			delete(c.blocks, bk)
		}
	}
	c.mu.Unlock()

	if err := c.advance(qc); err != nil {
		l.WithError(err).Warn("registering next epoch")
	}

	l.WithField("block", qc.CommitInfo().ID.ShortString()).Info("committed round")

	return nil
}

func (c *Committer) persist(ctx context.Context, k roundKey, block *types.Block, qc *consensus.QuorumCertificate) error {
	if block != nil {
		if err := c.store.PutBlock(ctx, k.epoch, k.round, block); err != nil {
			return errors.Wrap(err, "storing block")
		}
	}

	if err := c.store.PutQC(ctx, k.epoch, k.round, qc); err != nil {
		return errors.Wrap(err, "storing qc")
	}

	if qc.LedgerInfo.CommitInfo.EndsEpoch() {
		li := qc.LedgerInfo
		if err := c.store.PutLedgerInfo(ctx, k.epoch, &li); err != nil {
			return errors.Wrap(err, "storing ledger info")
		}
	}

	if c.randomness != nil {
		n := qc.CommitInfo().Version
		if seed, ok := c.randomness.RandomnessFor(n); ok && len(seed) > 0 {
			if err := c.store.PutRandomness(ctx, n, seed); err != nil {
				return errors.Wrap(err, "storing randomness")
			}
		}
	}

	return nil
}

// retry repeats fn on storage io failures. Consistency violations mean a
// conflicting record is already durable and are never retried.
func (c *Committer) retry(ctx context.Context, l *logrus.Entry, fn func() error) error {
	bo := &backoff.Backoff{
		Min:    c.minDelay,
		Max:    c.maxDelay,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !errors.Is(err, storage.ErrStorageIO) || attempt == c.maxAttempts {
			break
		}

		d := bo.Duration()
		l.WithError(err).
			WithField("attempt", attempt).
			WithField("waiting", d).
			Warn("retrying persistence")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	return err
}

// advance hands the next validator set to the epoch registry and drops
// aggregation state the committed round made obsolete
func (c *Committer) advance(qc *consensus.QuorumCertificate) error {
	ci := qc.CommitInfo()

	if !ci.EndsEpoch() {
		if c.pool != nil {
			c.pool.PruneBelow(ci.Epoch, ci.Round+1)
		}
		return nil
	}

	// every round of the finished epoch is obsolete
	if c.pool != nil {
		c.pool.PruneBelow(ci.Epoch+1, 0)
	}

	if c.epochs == nil {
		return nil
	}

	if _, err := c.epochs.RegisterState(ci.NextEpochState); err != nil && !errors.Is(err, epoch.ErrEpochExists) {
		return err
	}

	return nil
}
