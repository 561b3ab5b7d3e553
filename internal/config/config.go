package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tcfw/ledgercert/internal/utils/logging"
)

const (
	Cfg_verbose   = "verbose"
	Cfg_logFormat = "log.format"
)

var (
	defaults = map[string]interface{}{
		Cfg_verbose:   false,
		Cfg_logFormat: "text",
	}
)

func init() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func GetConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("ledgercert")
	viper.AddConfigPath("/etc/ledgercert/")
	viper.AddConfigPath("$HOME/.ledgercert")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("LEDGERCERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			logging.Entry().Debug("no config found")
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	c := &Config{}

	c.p2p, err = buildP2PConfig()
	if err != nil {
		return nil, errors.Wrap(err, "p2p config")
	}

	c.chain, err = buildChainConfig()
	if err != nil {
		return nil, errors.Wrap(err, "chain config")
	}

	c.storage, err = buildStorageConfig()
	if err != nil {
		return nil, errors.Wrap(err, "storage config")
	}

	c.api = buildAPIConfig()

	c.commit, err = buildCommitConfig()
	if err != nil {
		return nil, errors.Wrap(err, "commit config")
	}

	if err := logging.SetFormat(viper.GetString(Cfg_logFormat)); err != nil {
		return nil, errors.Wrap(err, "log format")
	}

	if viper.GetBool(Cfg_verbose) {
		logging.SetLevel(logrus.DebugLevel)
		logging.Entry().WithField("level", "debug").Debug("setting log level")
	}

	return c, nil
}

type Config struct {
	p2p     *P2P
	chain   *Chain
	storage *Storage
	api     *API
	commit  *Commit
}

func (c *Config) P2P() *P2P {
	return c.p2p
}

func (c *Config) Chain() *Chain {
	return c.chain
}

func (c *Config) Storage() *Storage {
	return c.storage
}

func (c *Config) API() *API {
	return c.api
}

func (c *Config) Commit() *Commit {
	return c.commit
}

// homePath resolves p relative to the ledgercert home directory when
// p is not already absolute
func homePath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if filepath.IsAbs(p) {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home dir")
	}

	return filepath.Join(home, ".ledgercert", p), nil
}
