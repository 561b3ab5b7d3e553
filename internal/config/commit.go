package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Commit holds the retry policy applied to failed ledger writes
type Commit struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

const (
	Cfg_commit_retry_minDelay    = "commit.retry.minDelay"
	Cfg_commit_retry_maxDelay    = "commit.retry.maxDelay"
	Cfg_commit_retry_maxAttempts = "commit.retry.maxAttempts"
)

var (
	commitDefaults = map[string]interface{}{
		Cfg_commit_retry_minDelay:    "100ms",
		Cfg_commit_retry_maxDelay:    "10s",
		Cfg_commit_retry_maxAttempts: 5,
	}
)

func init() {
	for k, v := range commitDefaults {
		viper.SetDefault(k, v)
	}
}

func buildCommitConfig() (*Commit, error) {
	c := &Commit{
		MinDelay:    viper.GetDuration(Cfg_commit_retry_minDelay),
		MaxDelay:    viper.GetDuration(Cfg_commit_retry_maxDelay),
		MaxAttempts: viper.GetInt(Cfg_commit_retry_maxAttempts),
	}

	if c.MaxAttempts < 1 {
		return nil, errors.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}

	if c.MinDelay > c.MaxDelay {
		return nil, errors.Errorf("min delay %s above max delay %s", c.MinDelay, c.MaxDelay)
	}

	return c, nil
}
