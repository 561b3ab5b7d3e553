package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Storage struct {
	Path        string
	InMemory    bool
	CacheSize   int
	Compression bool
}

const (
	Cfg_storage_path        = "storage.path"
	Cfg_storage_inMemory    = "storage.inMemory"
	Cfg_storage_cacheSize   = "storage.cacheSize"
	Cfg_storage_compression = "storage.compression"
)

var (
	storageDefaults = map[string]interface{}{
		Cfg_storage_path:        "data",
		Cfg_storage_inMemory:    false,
		Cfg_storage_cacheSize:   4096,
		Cfg_storage_compression: true,
	}
)

func init() {
	for k, v := range storageDefaults {
		viper.SetDefault(k, v)
	}
}

func buildStorageConfig() (*Storage, error) {
	c := &Storage{
		InMemory:    viper.GetBool(Cfg_storage_inMemory),
		CacheSize:   viper.GetInt(Cfg_storage_cacheSize),
		Compression: viper.GetBool(Cfg_storage_compression),
	}

	if c.CacheSize <= 0 {
		return nil, errors.Errorf("cache size must be positive, got %d", c.CacheSize)
	}

	p, err := homePath(viper.GetString(Cfg_storage_path))
	if err != nil {
		return nil, errors.Wrap(err, "storage path")
	}
	c.Path = p

	return c, nil
}
