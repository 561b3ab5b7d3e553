package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type P2P struct {
	Connections struct {
		PeersCountHigh int
		PeersCountLow  int
	}
	BootstrapPeers []string
	ListenAddrs    []string
	IdentityFile   string
	Relay          bool
	MinTopicSize   int
}

const (
	Cfg_p2p_connections_peerCountLow  = "p2p.connections.peerCountLow"
	Cfg_p2p_connections_peerCountHigh = "p2p.connections.peerCountHigh"
	Cfg_p2p_bootstrapPeers            = "p2p.bootstrapPeers"
	Cfg_p2p_listeningAddrs            = "p2p.listeningAddrs"
	Cfg_p2p_identityFile              = "p2p.identityFile"
	Cfg_p2p_enableRelay               = "p2p.enableRelay"
	Cfg_p2p_minTopicSize              = "p2p.minTopicSize"
)

var (
	p2pDefaults = map[string]interface{}{
		Cfg_p2p_connections_peerCountLow:  50,
		Cfg_p2p_connections_peerCountHigh: 100,
		Cfg_p2p_bootstrapPeers:            []string{},
		Cfg_p2p_listeningAddrs: []string{
			"/ip4/0.0.0.0/udp/8712/quic",
			"/ip6/::0/udp/8712/quic",
		},
		Cfg_p2p_identityFile: "identity",
		Cfg_p2p_enableRelay:  false,
		Cfg_p2p_minTopicSize: 0,
	}
)

func init() {
	for k, v := range p2pDefaults {
		viper.SetDefault(k, v)
	}
}

func buildP2PConfig() (*P2P, error) {
	c := &P2P{}

	c.Connections.PeersCountLow = viper.GetInt(Cfg_p2p_connections_peerCountLow)
	c.Connections.PeersCountHigh = viper.GetInt(Cfg_p2p_connections_peerCountHigh)
	if c.Connections.PeersCountLow > c.Connections.PeersCountHigh {
		return nil, errors.Errorf("peer count low watermark %d above high watermark %d", c.Connections.PeersCountLow, c.Connections.PeersCountHigh)
	}

	c.BootstrapPeers = viper.GetStringSlice(Cfg_p2p_bootstrapPeers)
	c.ListenAddrs = viper.GetStringSlice(Cfg_p2p_listeningAddrs)
	c.Relay = viper.GetBool(Cfg_p2p_enableRelay)
	c.MinTopicSize = viper.GetInt(Cfg_p2p_minTopicSize)

	id, err := homePath(viper.GetString(Cfg_p2p_identityFile))
	if err != nil {
		return nil, errors.Wrap(err, "identity file")
	}
	c.IdentityFile = id

	return c, nil
}
