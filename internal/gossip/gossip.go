package gossip

import (
	"context"
	"io"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/pkg/consensus"
)

const (
	CommitVoteTopic = "/ledgercert/commit-votes/1"
)

// VoteSink receives votes decoded from the network
type VoteSink interface {
	AddVote(*consensus.CommitVote) (consensus.AddOutcome, error)
}

type Option func(*Gossip)

func WithLogger(l *logrus.Entry) Option {
	return func(g *Gossip) {
		g.logger = l
	}
}

// WithMinTopicSize makes publishing wait until n peers joined the topic
func WithMinTopicSize(n int) Option {
	return func(g *Gossip) {
		g.minTopicSize = n
	}
}

// Gossip carries commit votes between validators over a gossipsub topic
type Gossip struct {
	router *pubsub.PubSub
	self   peer.ID
	sink   VoteSink
	logger *logrus.Entry

	minTopicSize int

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(router *pubsub.PubSub, self peer.ID, sink VoteSink, opts ...Option) (*Gossip, error) {
	l := logrus.New()
	l.SetOutput(io.Discard)

	g := &Gossip{
		router: router,
		self:   self,
		sink:   sink,
		logger: logrus.NewEntry(l),
	}

	for _, opt := range opts {
		opt(g)
	}

	// malformed envelopes are dropped before they are forwarded
	err := router.RegisterTopicValidator(CommitVoteTopic, func(_ context.Context, _ peer.ID, m *pubsub.Message) bool {
		_, err := UnmarshalMsg(m.Data)
		return err == nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "registering topic validator")
	}

	t, err := router.Join(CommitVoteTopic)
	if err != nil {
		return nil, errors.Wrap(err, "join commit vote topic")
	}
	g.topic = t

	return g, nil
}

func (g *Gossip) Start(ctx context.Context) error {
	sub, err := g.topic.Subscribe()
	if err != nil {
		return errors.Wrap(err, "subscribing to commit vote topic")
	}
	g.sub = sub

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	g.wg.Add(1)
	go g.recv(ctx)

	return nil
}

func (g *Gossip) recv(ctx context.Context) {
	defer g.wg.Done()

	for {
		m, err := g.sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				g.logger.WithError(err).Errorf("sub %s closed", CommitVoteTopic)
			}
			return
		}

		if m.ReceivedFrom == g.self {
			continue
		}

		msg, err := UnmarshalMsg(m.Data)
		if err != nil {
			g.logger.WithError(err).WithField("from", m.ReceivedFrom).Error("unmarshalling msg")
			continue
		}

		g.deliver(m.ReceivedFrom, msg.Vote)
	}
}

func (g *Gossip) deliver(from peer.ID, vote *consensus.CommitVote) {
	l := g.logger.WithFields(logrus.Fields{
		"from":   from.ShortString(),
		"author": vote.Author().ShortString(),
		"epoch":  vote.Epoch(),
		"round":  vote.Round(),
	})

	out, err := g.sink.AddVote(vote)
	switch {
	case err == nil:
		l.WithField("outcome", out.Outcome.String()).Debug("received commit vote")
	case errors.Is(err, consensus.ErrEquivocation):
		l.WithError(err).Warn("peer relayed equivocating vote")
	default:
		l.WithError(err).Debug("dropped commit vote")
	}
}

func (g *Gossip) PublishVote(ctx context.Context, vote *consensus.CommitVote) error {
	b, err := (&Msg{Type: MsgTypeCommitVote, Vote: vote}).Marshal()
	if err != nil {
		return errors.Wrap(err, "encoding commit vote")
	}

	var opts []pubsub.PubOpt
	if g.minTopicSize > 0 {
		opts = append(opts, pubsub.WithReadiness(pubsub.MinTopicSize(g.minTopicSize)))
	}

	if err := g.topic.Publish(ctx, b, opts...); err != nil {
		return errors.Wrap(err, "publishing commit vote")
	}

	return nil
}

func (g *Gossip) Close() error {
	if g.cancel != nil {
		g.cancel()
	}
	if g.sub != nil {
		g.sub.Cancel()
	}
	g.wg.Wait()

	if err := g.router.UnregisterTopicValidator(CommitVoteTopic); err != nil {
		g.logger.WithError(err).Debug("unregistering topic validator")
	}

	return g.topic.Close()
}
