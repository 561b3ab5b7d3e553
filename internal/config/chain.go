package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tcfw/ledgercert/pkg/types"
)

type Chain struct {
	GenesisFile    string
	SigningKeyFile string

	// Author overrides the address derived from the signing key
	Author *types.Author
}

const (
	Cfg_chain_genesisFile    = "chain.genesisFile"
	Cfg_chain_signingKeyFile = "chain.signingKeyFile"
	Cfg_chain_author         = "chain.author"
)

var (
	chainDefaults = map[string]interface{}{
		Cfg_chain_genesisFile:    "genesis.yaml",
		Cfg_chain_signingKeyFile: "",
		Cfg_chain_author:         "",
	}
)

func init() {
	for k, v := range chainDefaults {
		viper.SetDefault(k, v)
	}
}

func buildChainConfig() (*Chain, error) {
	c := &Chain{}

	var err error
	c.GenesisFile, err = homePath(viper.GetString(Cfg_chain_genesisFile))
	if err != nil {
		return nil, errors.Wrap(err, "genesis file")
	}

	if kf := viper.GetString(Cfg_chain_signingKeyFile); kf != "" {
		c.SigningKeyFile, err = homePath(kf)
		if err != nil {
			return nil, errors.Wrap(err, "signing key file")
		}
	}

	if a := viper.GetString(Cfg_chain_author); a != "" {
		author, err := types.AuthorFromHex(a)
		if err != nil {
			return nil, errors.Wrap(err, "parsing author override")
		}
		c.Author = &author
	}

	return c, nil
}
