package consensus

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/pkg/epoch"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
)

const (
	defaultCertifiedBuffer = 64
	equivocationBuffer     = 64
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

// Pool routes commit votes to the aggregator of their (epoch, round),
// creating aggregators on first sight. The pool lock only guards the
// aggregator map; votes for different rounds never contend.
type Pool struct {
	provider epoch.Provider

	logger          *logrus.Entry
	tracer          Tracer
	registerer      prometheus.Registerer
	metrics         *metrics
	certifiedBuffer int

	mu          sync.RWMutex
	aggregators map[roundKey]*Aggregator
	floor       roundKey

	certified     chan *QuorumCertificate
	equivocations chan *EquivocationError

	done      chan struct{}
	closeOnce sync.Once
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func NewPool(provider epoch.Provider, opts ...Option) (*Pool, error) {
	p := &Pool{
		provider:        provider,
		logger:          discardLogger(),
		certifiedBuffer: defaultCertifiedBuffer,
		aggregators:     make(map[roundKey]*Aggregator),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.Wrap(err, "applying pool option")
		}
	}

	m, err := newMetrics(p.registerer)
	if err != nil {
		return nil, err
	}
	p.metrics = m

	p.certified = make(chan *QuorumCertificate, p.certifiedBuffer)
	p.equivocations = make(chan *EquivocationError, equivocationBuffer)
	p.done = make(chan struct{})

	return p, nil
}

// Certified emits each certificate exactly once. Sends block when the
// buffer is full so a slow consumer applies backpressure to AddVote,
// until the pool is closed.
func (p *Pool) Certified() <-chan *QuorumCertificate {
	return p.certified
}

// Equivocations emits detected evidence. Evidence that does not fit the
// buffer is dropped here but stays available from the aggregator.
func (p *Pool) Equivocations() <-chan *EquivocationError {
	return p.equivocations
}

// Track starts collecting for li's round, only accepting votes that
// match li from then on. A round that already received votes is bound
// to li unless it is no longer collecting.
func (p *Pool) Track(li types.LedgerInfo) (*Aggregator, error) {
	verifier, err := p.resolve(li.Epoch(), li.Round())
	if err != nil {
		return nil, err
	}

	a, created, err := p.aggregator(verifier, li.Round(), WithTarget(li))
	if err != nil {
		return nil, err
	}

	if !created {
		if err := a.bindTarget(li); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (p *Pool) Aggregator(epoch, round uint64) (*Aggregator, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.aggregators[roundKey{epoch, round}]
	return a, ok
}

// resolve returns the verifier for a round that is not yet pruned
func (p *Pool) resolve(epochN, round uint64) (*validator.Verifier, error) {
	k := roundKey{epochN, round}

	p.mu.RLock()
	a, ok := p.aggregators[k]
	floor := p.floor
	p.mu.RUnlock()

	if ok {
		return a.verifier, nil
	}
	if k.less(floor) {
		return nil, errors.Wrapf(ErrAbandoned, "epoch %d round %d is pruned", epochN, round)
	}

	verifier, err := p.provider.ResolveEpoch(epochN)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving epoch %d", epochN)
	}

	return verifier, nil
}

// aggregator returns the round's aggregator, creating it with opts.
// created reports whether opts were applied.
func (p *Pool) aggregator(verifier *validator.Verifier, round uint64, opts ...AggregatorOption) (*Aggregator, bool, error) {
	k := roundKey{verifier.Epoch(), round}

	p.mu.Lock()
	defer p.mu.Unlock()

	if a, ok := p.aggregators[k]; ok {
		return a, false, nil
	}
	if k.less(p.floor) {
		return nil, false, errors.Wrapf(ErrAbandoned, "epoch %d round %d is pruned", k.epoch, round)
	}

	a := NewAggregator(verifier, round, opts...)
	p.aggregators[k] = a
	p.metrics.aggregators.Inc()

	return a, true, nil
}

func (p *Pool) AddVote(vote *CommitVote) (AddOutcome, error) {
	out, err := p.addVote(vote)

	if p.tracer != nil {
		p.tracer.OnVote(vote, out, err)
	}

	return out, err
}

func (p *Pool) addVote(vote *CommitVote) (AddOutcome, error) {
	l := p.logger.WithFields(logrus.Fields{
		"author": vote.Author().ShortString(),
		"epoch":  vote.Epoch(),
		"round":  vote.Round(),
	})

	verifier, err := p.resolve(vote.Epoch(), vote.Round())
	if err != nil {
		p.metrics.rejected.Inc()
		l.WithError(err).Debug("no aggregator for vote")
		return AddOutcome{}, err
	}

	// rejected votes never allocate a round
	if err := vote.Verify(verifier); err != nil {
		p.metrics.rejected.Inc()
		l.WithError(err).Debug("rejected commit vote")
		return AddOutcome{}, err
	}

	a, _, err := p.aggregator(verifier, vote.Round())
	if err != nil {
		p.metrics.rejected.Inc()
		l.WithError(err).Debug("no aggregator for vote")
		return AddOutcome{}, err
	}

	out, err := a.addVerified(vote)
	if err != nil {
		var ev *EquivocationError
		if errors.As(err, &ev) {
			p.metrics.equivocations.Inc()

			first := ev.First.LedgerInfo()
			second := ev.Second.LedgerInfo()
			fh, _ := first.Hash()
			sh, _ := second.Hash()
			l.WithFields(logrus.Fields{"first": fh.ShortString(), "second": sh.ShortString()}).Warn("equivocating commit vote")

			select {
			case p.equivocations <- ev:
			default:
				l.Warn("equivocation channel full, dropping evidence")
			}
		} else {
			p.metrics.rejected.Inc()
			l.WithError(err).Debug("rejected commit vote")
		}

		return out, err
	}

	p.metrics.votes.WithLabelValues(out.Outcome.String()).Inc()

	if out.Outcome == OutcomeCertified {
		p.metrics.certified.Inc()
		l.WithFields(logrus.Fields{
			"outcome": out.Outcome.String(),
			"signers": len(out.Certificate.Signers),
		}).Info("formed quorum certificate")

		if p.tracer != nil {
			p.tracer.OnCertified(out.Certificate)
		}

		select {
		case p.certified <- out.Certificate:
		case <-p.done:
			l.Warn("pool closed, certificate not delivered")
		}
	}

	return out, nil
}

// Close releases AddVote calls blocked on a full Certified channel.
// Certificates formed afterwards are only kept by their aggregator.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

func (p *Pool) Abandon(epoch, round uint64) bool {
	a, ok := p.Aggregator(epoch, round)
	if !ok {
		return false
	}

	return a.Abandon()
}

// AbandonEpoch abandons every collecting round of the epoch and drops
// them from the pool
func (p *Pool) AbandonEpoch(epoch uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for k, a := range p.aggregators {
		if k.epoch != epoch {
			continue
		}

		if a.Abandon() {
			n++
		}
		delete(p.aggregators, k)
		p.metrics.aggregators.Dec()
	}

	return n
}

// PruneBelow drops every round before (epoch, round). Votes for pruned
// rounds are rejected with ErrAbandoned from then on.
func (p *Pool) PruneBelow(epoch, round uint64) int {
	k := roundKey{epoch, round}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.floor.less(k) {
		p.floor = k
	}

	n := 0
	for rk, a := range p.aggregators {
		if !rk.less(k) {
			continue
		}

		a.Abandon()
		delete(p.aggregators, rk)
		p.metrics.aggregators.Dec()
		n++
	}

	return n
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.aggregators)
}
