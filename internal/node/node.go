package node

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tcfw/ledgercert/internal/api"
	"github.com/tcfw/ledgercert/internal/commit"
	"github.com/tcfw/ledgercert/internal/config"
	"github.com/tcfw/ledgercert/internal/gossip"
	"github.com/tcfw/ledgercert/internal/storage"
	"github.com/tcfw/ledgercert/internal/utils/logging"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/epoch"
	storageIface "github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
)

const (
	shutdownTimeout = 10 * time.Second
)

var (
	ErrNoSigner      = errors.New("no signing key configured")
	ErrTargetChanged = errors.New("block does not match ledger info")
)

type Node struct {
	cfg *config.Config

	host      host.Host
	p2p       *p2pHost
	store     storageIface.Store
	epochs    *epoch.Table
	pool      *consensus.Pool
	committer *commit.Committer
	gossip    *gossip.Gossip
	api       *api.Api
	registry  *prometheus.Registry

	author types.Author
	signer *cryptography.Bls12381PrivateKey

	logger *logrus.Entry
}

func (n *Node) Store() storageIface.Reader {
	return n.store
}

func (n *Node) Epochs() *epoch.Table {
	return n.epochs
}

func (n *Node) Pool() *consensus.Pool {
	return n.pool
}

func (n *Node) Committer() *commit.Committer {
	return n.committer
}

func (n *Node) API() *api.Api {
	return n.api
}

func (n *Node) ID() peer.ID {
	return n.p2p.host.ID()
}

// Author is the validator address local votes are signed as
func (n *Node) Author() (types.Author, bool) {
	return n.author, n.signer != nil
}

func NewNode(ctx context.Context, opts ...NodeOption) (*Node, error) {
	n := &Node{}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	var err error
	if n.cfg == nil {
		n.cfg, err = config.GetConfig()
		if err != nil {
			return nil, err
		}
	}
	if n.logger == nil {
		n.logger = logging.Component("node")
	}
	if n.registry == nil {
		n.registry = prometheus.NewRegistry()
	}

	if err := n.setupSigner(); err != nil {
		return nil, err
	}

	if n.store == nil {
		n.store, err = openStore(n.cfg)
		if err != nil {
			return nil, errors.Wrap(err, "opening store")
		}
	}

	if err := n.setupEpochs(ctx); err != nil {
		n.store.Close()
		return nil, errors.Wrap(err, "loading epochs")
	}

	if err := n.setupConsensus(); err != nil {
		n.store.Close()
		return nil, err
	}

	if n.host != nil {
		n.p2p, err = attachP2PHost(ctx, n.host)
	} else {
		n.p2p, err = newP2PHost(ctx, n.cfg, n.logger)
	}
	if err != nil {
		n.store.Close()
		return nil, err
	}

	n.gossip, err = gossip.New(n.p2p.pubsub, n.p2p.host.ID(), n.pool,
		gossip.WithLogger(logging.Component("gossip")),
		gossip.WithMinTopicSize(n.cfg.P2P().MinTopicSize),
	)
	if err != nil {
		n.close()
		return nil, errors.Wrap(err, "joining vote gossip")
	}

	n.api, err = api.NewAPI(n.store,
		api.WithGatherer(n.registry),
		api.WithPeers(n.p2p),
		api.WithEpochs(n.epochs),
		api.WithLogger(logging.Component("api")),
	)
	if err != nil {
		n.close()
		return nil, errors.Wrap(err, "building api")
	}

	if n.host == nil {
		if err := n.bootstrap(ctx); err != nil {
			n.close()
			return nil, errors.Wrap(err, "bootstrapping p2p")
		}
	}

	return n, nil
}

func openStore(cfg *config.Config) (*storage.PebbleStore, error) {
	sc := cfg.Storage()

	opts := []storage.Option{
		storage.WithCacheEntries(sc.CacheSize),
		storage.WithBlockCompression(sc.Compression),
	}
	if sc.InMemory {
		opts = append(opts, storage.WithInMemory())
	}

	return storage.NewPebbleStore(sc.Path, opts...)
}

func (n *Node) setupSigner() error {
	if n.signer == nil && n.cfg.Chain().SigningKeyFile != "" {
		author, key, err := LoadSigningKey(n.cfg.Chain().SigningKeyFile)
		if err != nil {
			return errors.Wrap(err, "loading signing key")
		}
		n.author, n.signer = author, key
	}

	if n.cfg.Chain().Author != nil {
		n.author = *n.cfg.Chain().Author
	}

	return nil
}

// setupEpochs registers the genesis validator set followed by every
// epoch state persisted by past reconfigurations
func (n *Node) setupEpochs(ctx context.Context) error {
	g, err := epoch.LoadGenesisFile(n.cfg.Chain().GenesisFile)
	if err != nil {
		return err
	}

	gs, err := g.EpochState()
	if err != nil {
		return err
	}

	if err := n.store.PutEpochState(ctx, gs); err != nil {
		return errors.Wrap(err, "storing genesis epoch state")
	}

	n.epochs = epoch.NewTable()
	if _, err := n.epochs.RegisterState(gs); err != nil {
		return err
	}

	for e := gs.Epoch + 1; ; e++ {
		s, err := n.store.GetEpochState(ctx, e)
		if err != nil {
			return errors.Wrapf(err, "reading epoch state %d", e)
		}
		if s == nil {
			break
		}

		if _, err := n.epochs.RegisterState(s); err != nil {
			return err
		}
	}

	latest, _ := n.epochs.Latest()
	l := n.logger.WithField("epoch", latest.Epoch())
	if n.signer != nil && !latest.Contains(n.author) {
		l.WithField("author", n.author.ShortString()).Warn("signing key is not part of the current validator set")
	}
	l.Info("epochs loaded")

	return nil
}

func (n *Node) setupConsensus() error {
	var err error

	n.pool, err = consensus.NewPool(n.epochs,
		consensus.WithLogger(logging.Component("aggregator")),
		consensus.WithRegisterer(n.registry),
	)
	if err != nil {
		return errors.Wrap(err, "building aggregator pool")
	}

	cc := n.cfg.Commit()
	n.committer = commit.New(n.store,
		commit.WithLogger(logging.Component("commit")),
		commit.WithEpochRegistry(n.epochs),
		commit.WithRandomness(n.epochs),
		commit.WithCertifier(n.pool),
		commit.WithRetry(cc.MinDelay, cc.MaxDelay, cc.MaxAttempts),
	)

	return nil
}

// Certify records a locally executed block, binds its round to li and
// signs and publishes the local commit vote
func (n *Node) Certify(ctx context.Context, b *types.Block, li types.LedgerInfo) (*consensus.CommitVote, error) {
	if b.Epoch != li.Epoch() || b.Round != li.Round() || b.ID != li.CommitInfo.ID {
		return nil, errors.Wrapf(ErrTargetChanged, "block %d/%d %s", b.Epoch, b.Round, b.ID.ShortString())
	}

	if n.signer == nil {
		return nil, ErrNoSigner
	}

	if err := n.committer.AddBlock(b); err != nil {
		return nil, err
	}

	if _, err := n.pool.Track(li); err != nil {
		return nil, errors.Wrap(err, "tracking round")
	}

	vote, err := consensus.NewCommitVote(n.author, li, n.signer)
	if err != nil {
		return nil, errors.Wrap(err, "signing commit vote")
	}

	if _, err := n.pool.AddVote(vote); err != nil {
		return nil, errors.Wrap(err, "adding local vote")
	}

	if err := n.gossip.PublishVote(ctx, vote); err != nil {
		return nil, err
	}

	return vote, nil
}

// SetRandomness records the DKG seed of a block ahead of its commit
func (n *Node) SetRandomness(blockNumber uint64, seed types.RandomnessSeed) {
	n.epochs.SetRandomness(blockNumber, seed)
}

// ListenAndServe runs the node services until ctx is done or one of
// them fails
func (n *Node) ListenAndServe(ctx context.Context) error {
	n.logger.WithField("addrs", n.p2p.host.Addrs()).WithField("id", n.p2p.host.ID().String()).Info("Starting listening")

	g, gctx := errgroup.WithContext(ctx)

	if err := n.gossip.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		err := n.committer.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "committer")
	})

	g.Go(func() error {
		n.watchEquivocations(gctx)
		return nil
	})

	if n.host == nil {
		go n.watchEvents(gctx)
	}

	g.Go(func() error {
		return n.api.ListenAndServe(n.cfg.API().ListenAddr)
	})

	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return n.api.Shutdown(sctx)
	})

	return g.Wait()
}

func (n *Node) watchEquivocations(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.pool.Equivocations():
			n.logger.WithFields(logrus.Fields{
				"author": ev.Author.ShortString(),
				"epoch":  ev.First.Epoch(),
				"round":  ev.First.Round(),
			}).Warn("validator equivocated")
		}
	}
}

func (n *Node) watchEvents(ctx context.Context) {
	sub, err := n.p2p.host.EventBus().Subscribe(event.WildcardSubscription)
	if err != nil {
		n.logger.WithError(err).Error("subscribing to p2p events")
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}

			switch evt := e.(type) {
			case event.EvtLocalAddressesUpdated:
				for _, addr := range evt.Current {
					if addr.Action != event.Maintained {
						actionStr := "added"
						if addr.Action == event.Removed {
							actionStr = "removed"
						}
						n.logger.WithField("addr", addr.Address.String()).WithField("action", actionStr).Info("updated reachability")
					}
				}
			default:
				n.logger.WithField("event", e).Debugf("unknown event %T", evt)
			}
		}
	}
}

// Stop releases the gossip subscription, p2p host and store
func (n *Node) Stop() error {
	n.logger.Warn("Shutting down")

	return n.close()
}

func (n *Node) close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// unblock vote delivery before waiting on the gossip receiver
	if n.pool != nil {
		n.pool.Close()
	}
	if n.gossip != nil {
		keep(n.gossip.Close())
	}
	if n.p2p != nil {
		keep(n.p2p.Close())
	}
	if n.store != nil {
		keep(n.store.Close())
	}

	return firstErr
}

func (n *Node) bootstrap(ctx context.Context) error {
	n.logger.Debugf("bootstrapping P2P host")

	peers := n.cfg.P2P().BootstrapPeers
	if len(peers) == 0 {
		n.logger.Debug("no bootstrapping peers")
	}

	var wg sync.WaitGroup

	for _, peerAddr := range peers {
		ma, err := multiaddr.NewMultiaddr(peerAddr)
		if err != nil {
			return errors.Wrap(err, "parsing bootstrap multiaddr")
		}

		peerinfo, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return errors.Wrapf(err, "bootstrap peer %s", peerAddr)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := n.p2p.host.Connect(ctx, *peerinfo); err != nil {
				n.logger.WithField("peer", peerinfo.String()).WithError(err).Warning("failed to connect to bootstrap peer")
			} else {
				n.logger.Debug("Connection established with bootstrap peer:", *peerinfo)
			}
		}()
	}
	wg.Wait()

	return nil
}
