package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ledgercert", "data"), c.Storage().Path)
	assert.False(t, c.Storage().InMemory)
	assert.Equal(t, 4096, c.Storage().CacheSize)
	assert.True(t, c.Storage().Compression)

	assert.Equal(t, "127.0.0.1:8080", c.API().ListenAddr)

	assert.Equal(t, 50, c.P2P().Connections.PeersCountLow)
	assert.Equal(t, 100, c.P2P().Connections.PeersCountHigh)
	assert.Len(t, c.P2P().ListenAddrs, 2)
	assert.Equal(t, filepath.Join(home, ".ledgercert", "identity"), c.P2P().IdentityFile)

	assert.Equal(t, filepath.Join(home, ".ledgercert", "genesis.yaml"), c.Chain().GenesisFile)
	assert.Empty(t, c.Chain().SigningKeyFile)
	assert.Nil(t, c.Chain().Author)

	assert.Equal(t, 100*time.Millisecond, c.Commit().MinDelay)
	assert.Equal(t, 10*time.Second, c.Commit().MaxDelay)
	assert.Equal(t, 5, c.Commit().MaxAttempts)
}

func TestGetConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	author := "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

	t.Setenv("LEDGERCERT_STORAGE_PATH", filepath.Join(dir, "db"))
	t.Setenv("LEDGERCERT_STORAGE_INMEMORY", "true")
	t.Setenv("LEDGERCERT_API_LISTENADDR", ":9100")
	t.Setenv("LEDGERCERT_CHAIN_SIGNINGKEYFILE", filepath.Join(dir, "key"))
	t.Setenv("LEDGERCERT_CHAIN_AUTHOR", author)
	t.Setenv("LEDGERCERT_COMMIT_RETRY_MAXATTEMPTS", "9")
	t.Setenv("LEDGERCERT_COMMIT_RETRY_MAXDELAY", "1m")

	c, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "db"), c.Storage().Path)
	assert.True(t, c.Storage().InMemory)
	assert.Equal(t, ":9100", c.API().ListenAddr)
	assert.Equal(t, filepath.Join(dir, "key"), c.Chain().SigningKeyFile)
	require.NotNil(t, c.Chain().Author)
	assert.Equal(t, byte(0x01), c.Chain().Author[0])
	assert.Equal(t, byte(0x20), c.Chain().Author[31])
	assert.Equal(t, 9, c.Commit().MaxAttempts)
	assert.Equal(t, time.Minute, c.Commit().MaxDelay)
}

func TestGetConfigInvalid(t *testing.T) {
	tests := map[string][2]string{
		"author":      {"LEDGERCERT_CHAIN_AUTHOR", "not-hex"},
		"attempts":    {"LEDGERCERT_COMMIT_RETRY_MAXATTEMPTS", "0"},
		"cache":       {"LEDGERCERT_STORAGE_CACHESIZE", "-1"},
		"peer counts": {"LEDGERCERT_P2P_CONNECTIONS_PEERCOUNTLOW", "1000"},
		"log format":  {"LEDGERCERT_LOG_FORMAT", "xml"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])

			_, err := GetConfig()
			assert.Error(t, err)
		})
	}
}
