package node

import (
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/internal/config"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/types"
)

type NodeOption func(*Node) error

func WithConfig(c *config.Config) NodeOption {
	return func(n *Node) error {
		n.cfg = c
		return nil
	}
}

// WithStore replaces the pebble store built from config
func WithStore(s storage.Store) NodeOption {
	return func(n *Node) error {
		n.store = s
		return nil
	}
}

func WithLogger(l *logrus.Entry) NodeOption {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}

func WithRegistry(r *prometheus.Registry) NodeOption {
	return func(n *Node) error {
		n.registry = r
		return nil
	}
}

// WithSigner sets the key used for local commit votes in place of the
// configured signing key file
func WithSigner(author types.Author, key *cryptography.Bls12381PrivateKey) NodeOption {
	return func(n *Node) error {
		n.author = author
		n.signer = key
		return nil
	}
}

// WithHost attaches an existing libp2p host. No DHT or discovery is
// started for it and bootstrap peers are ignored.
func WithHost(h host.Host) NodeOption {
	return func(n *Node) error {
		n.host = h
		return nil
	}
}
