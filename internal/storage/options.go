package storage

import (
	"github.com/sirupsen/logrus"
)

type config struct {
	inMemory     bool
	cacheEntries int
	compress     bool
	logger       *logrus.Entry
}

type Option func(*config)

// WithInMemory backs the store with an in memory filesystem
func WithInMemory() Option {
	return func(c *config) {
		c.inMemory = true
	}
}

func WithCacheEntries(n int) Option {
	return func(c *config) {
		c.cacheEntries = n
	}
}

// WithBlockCompression toggles zstd compression of block payloads on disk
func WithBlockCompression(on bool) Option {
	return func(c *config) {
		c.compress = on
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *config) {
		c.logger = l
	}
}
