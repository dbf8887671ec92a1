package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libgit2dart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
listen:
  address: 0.0.0.0:9000
  advertise: 10.0.0.5:9000
codec: binary
registry:
  kind: etcd
  endpoints: [etcd-1:2379, etcd-2:2379]
limits:
  callTimeout: 250ms
  rateLimit: 100
  rateBurst: 20
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Listen.Network)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen.Address)
	assert.Equal(t, "10.0.0.5:9000", cfg.Listen.Advertise)
	assert.Equal(t, "binary", cfg.Codec)
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.Registry.Endpoints)
	assert.Equal(t, int64(10), cfg.Registry.TTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Limits.CallTimeout)
	assert.Equal(t, 100.0, cfg.Limits.RateLimit)
	assert.Equal(t, 4, cfg.Client.PoolSize)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "registry:\n  kind: zookeeper\n"))
	assert.ErrorContains(t, err, "zookeeper")

	_, err = Load(writeConfig(t, "log:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "listen: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIBGIT2DART_LISTEN", "127.0.0.1:7999")
	t.Setenv("LIBGIT2DART_ETCD_ENDPOINTS", "a:2379, b:2379,")
	t.Setenv("LIBGIT2DART_HOSTS", "h1:1,h2:2")
	t.Setenv("LIBGIT2DART_RATE_LIMIT", "not-a-number")
	t.Setenv("LIBGIT2DART_CALL_TIMEOUT", "2s")

	cfg := Default()
	ApplyEnvOverrides(&cfg)

	assert.Equal(t, "127.0.0.1:7999", cfg.Listen.Address)
	assert.Equal(t, []string{"a:2379", "b:2379"}, cfg.Registry.Endpoints)
	assert.Equal(t, []string{"h1:1", "h2:2"}, cfg.Client.Hosts)
	assert.Zero(t, cfg.Limits.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.Limits.CallTimeout)
}
