package commit

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
)

// EpochRegistry accepts the validator set handed over by an epoch
// ending ledger info
type EpochRegistry interface {
	RegisterState(s *types.EpochState) (*validator.Verifier, error)
}

type RandomnessSource interface {
	RandomnessFor(blockNumber uint64) (types.RandomnessSeed, bool)
}

// Certifier is the aggregation side the committer drains and prunes
type Certifier interface {
	Certified() <-chan *consensus.QuorumCertificate
	PruneBelow(epoch, round uint64) int
}

type Option func(*Committer)

func WithLogger(l *logrus.Entry) Option {
	return func(c *Committer) {
		c.logger = l
	}
}

func WithEpochRegistry(r EpochRegistry) Option {
	return func(c *Committer) {
		c.epochs = r
	}
}

func WithRandomness(r RandomnessSource) Option {
	return func(c *Committer) {
		c.randomness = r
	}
}

func WithCertifier(p Certifier) Option {
	return func(c *Committer) {
		c.pool = p
	}
}

// WithRetry bounds persistence retries. Attempts includes the first try.
func WithRetry(min, max time.Duration, attempts int) Option {
	return func(c *Committer) {
		c.minDelay = min
		c.maxDelay = max
		c.maxAttempts = attempts
	}
}
