package node

import (
	"context"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p-peerstore/pstoremem"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	connmgriFace "github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	discovery "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/ledgercert/internal/config"
)

type p2pHost struct {
	host host.Host

	peerStore peerstore.Peerstore
	connMgr   connmgriFace.ConnManager
	pubsub    *pubsub.PubSub
	dht       *dht.IpfsDHT
	discovery *discovery.RoutingDiscovery

	// owned is false for hosts attached with WithHost
	owned bool
}

func newP2PHost(ctx context.Context, cfg *config.Config, l *logrus.Entry) (*p2pHost, error) {
	var err error
	h := &p2pHost{owned: true}

	id, err := getIdentity(cfg, l)
	if err != nil {
		return nil, err
	}

	listeningAddrs, err := buildListeningAddrs(cfg)
	if err != nil {
		return nil, err
	}

	h.connMgr, err = connmgr.NewConnManager(
		cfg.P2P().Connections.PeersCountLow,
		cfg.P2P().Connections.PeersCountHigh,
	)
	if err != nil {
		return nil, err
	}

	h.peerStore, err = pstoremem.NewPeerstore()
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		id,
		listeningAddrs,
		libp2p.DefaultTransports,
		libp2p.DefaultResourceManager,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
		libp2p.ConnectionManager(h.connMgr),
		libp2p.Peerstore(h.peerStore),
		libp2p.NATPortMap(),
		libp2p.EnableNATService(),
	}

	if cfg.P2P().Relay {
		opts = append(opts, libp2p.EnableRelay(), libp2p.EnableAutoRelay())
	}

	h.host, err = libp2p.NewWithoutDefaults(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating libp2p host")
	}

	h.dht, err = dht.New(ctx, h.host)
	if err != nil {
		return nil, errors.Wrap(err, "initing DHT")
	}
	if err := h.dht.Bootstrap(ctx); err != nil {
		return nil, errors.Wrap(err, "bootstrapping DHT")
	}

	h.discovery = discovery.NewRoutingDiscovery(h.dht)

	h.pubsub, err = newGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	return h, nil
}

func attachP2PHost(ctx context.Context, hst host.Host) (*p2pHost, error) {
	h := &p2pHost{
		host:      hst,
		peerStore: hst.Peerstore(),
		connMgr:   hst.ConnManager(),
	}

	var err error
	h.pubsub, err = newGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	return h, nil
}

func newGossipSub(ctx context.Context, h *p2pHost) (*pubsub.PubSub, error) {
	opts := []pubsub.Option{
		pubsub.WithPeerExchange(true),
		pubsub.WithStrictSignatureVerification(true),
	}
	if h.discovery != nil {
		opts = append(opts, pubsub.WithDiscovery(h.discovery))
	}

	p, err := pubsub.NewGossipSub(ctx, h.host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating gossipsub router")
	}

	return p, nil
}

func buildListeningAddrs(cfg *config.Config) (libp2p.Option, error) {
	maAddrs := []multiaddr.Multiaddr{}

	for _, addr := range cfg.P2P().ListenAddrs {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing listen addr %s", addr)
		}
		maAddrs = append(maAddrs, maddr)
	}

	return libp2p.ListenAddrs(maAddrs...), nil
}

// Peers lists connected peers with their known addresses
func (h *p2pHost) Peers() []peer.AddrInfo {
	ids := h.host.Network().Peers()
	out := make([]peer.AddrInfo, 0, len(ids))

	for _, id := range ids {
		out = append(out, h.peerStore.PeerInfo(id))
	}

	return out
}

func (h *p2pHost) Close() error {
	if !h.owned {
		return nil
	}

	if h.dht != nil {
		if err := h.dht.Close(); err != nil {
			return errors.Wrap(err, "closing DHT")
		}
	}

	return h.host.Close()
}
