package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Render.Release)
}

func TestLoader_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hxstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  shutdown_timeout: 3s
render:
  release: true
  templates_dir: views
cache:
  enabled: true
  driver: redis
  addr: "cache:6379"
  signing_key: from-file
log:
  level: debug
`), 0o644))

	l := NewLoader().WithConfigPath(path)
	l.lookupEnv = envFrom(map[string]string{
		"HXSTREAM_CACHE_ADDR":            "other:6379",
		"HXSTREAM_CACHE_TTL":             "90s",
		"HXSTREAM_METRICS_ENABLED":       "false",
		"HXSTREAM_RENDER_WATCH_INTERVAL": "250ms",
	})

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout, "defaults survive a partial file")
	assert.True(t, cfg.Render.Release)
	assert.Equal(t, "views", cfg.Render.TemplatesDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.WatchInterval)
	assert.Equal(t, CacheRedis, cfg.Cache.Driver)
	assert.Equal(t, "other:6379", cfg.Cache.Addr)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "from-file", cfg.Cache.SigningKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	l := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml"))
	l.lookupEnv = envFrom(nil)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_CustomPrefix(t *testing.T) {
	l := NewLoader().WithEnvPrefix("APP")
	l.lookupEnv = envFrom(map[string]string{
		"APP_SERVER_ADDR":      ":7000",
		"HXSTREAM_SERVER_ADDR": ":1",
	})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("bad env value", func(t *testing.T) {
		l := NewLoader()
		l.lookupEnv = envFrom(map[string]string{"HXSTREAM_CACHE_TTL": "soon"})
		_, err := l.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HXSTREAM_CACHE_TTL")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))
		l := NewLoader().WithConfigPath(path)
		l.lookupEnv = envFrom(nil)
		_, err := l.Load()
		require.Error(t, err)
	})

	t.Run("custom validator", func(t *testing.T) {
		l := NewLoader().WithValidator(func(c *Config) error {
			return errors.New("nope")
		})
		l.lookupEnv = envFrom(nil)
		_, err := l.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"unknown driver", func(c *Config) { c.Cache.Driver = "memcached" }, `cache.driver "memcached"`},
		{"redis without key", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Driver = CacheRedis
		}, "cache.signing_key"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("reports all at once", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Addr = ""
		cfg.Log.Level = "loud"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.addr")
		assert.Contains(t, err.Error(), "log.level")
	})
}
