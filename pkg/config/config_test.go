package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Crawl.StaleThreshold)
	assert.Equal(t, 5*time.Second, cfg.Crawl.SettleDelay)
	assert.Equal(t, 2, cfg.Catalog.MinDay)
	assert.Equal(t, 998, cfg.Catalog.MaxDay)
	assert.Equal(t, 20, cfg.Fetch.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Fetch.BatchPause)
	assert.Len(t, cfg.Trajectory.Documents, 6)
	assert.Equal(t, filepath.Join("data", "gif-images"), filepath.Clean(cfg.Data.AssetsPath()))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MARSFEED_DATA_DIR", "/tmp/mars")
	t.Setenv("MARSFEED_WORKERS", "7")
	t.Setenv("MARSFEED_STRICT", "true")
	t.Setenv("MARSFEED_LOG_LEVEL", "debug")
	t.Setenv("MARSFEED_MAX_PAGES", "3")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/mars", cfg.Data.Directory)
	assert.Equal(t, 7, cfg.Fetch.Workers)
	assert.True(t, cfg.Trajectory.Strict)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Crawl.MaxPages)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("MARSFEED_WORKERS", "many")
	t.Setenv("MARSFEED_STRICT", "maybe")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARSFEED_WORKERS")
	assert.Contains(t, err.Error(), "MARSFEED_STRICT")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
crawl:
  stale_threshold: 4
  settle_delay: 1s
fetch:
  workers: 2
trajectory:
  strict: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 4, cfg.Crawl.StaleThreshold)
	assert.Equal(t, time.Second, cfg.Crawl.SettleDelay)
	assert.Equal(t, 2, cfg.Fetch.Workers)
	assert.True(t, cfg.Trajectory.Strict)
	// untouched sections keep defaults
	assert.Equal(t, 20, cfg.Fetch.BatchSize)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no workers", mutate: func(c *Config) { c.Fetch.Workers = 0 }, wantErr: "fetch workers"},
		{name: "bad day bounds", mutate: func(c *Config) { c.Catalog.MaxDay = 1 }, wantErr: "day bounds"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "log level"},
		{
			name: "path without waypoints",
			mutate: func(c *Config) {
				c.Trajectory.Documents = []DocumentConfig{{Name: "p", Kind: "path", URL: "http://x"}}
			},
			wantErr: "needs a waypoints document",
		},
		{
			name: "duplicate document",
			mutate: func(c *Config) {
				c.Trajectory.Documents = append(c.Trajectory.Documents, c.Trajectory.Documents[0])
			},
			wantErr: "duplicate trajectory document",
		},
		{
			name: "unknown kind",
			mutate: func(c *Config) {
				c.Trajectory.Documents = []DocumentConfig{{Name: "p", Kind: "orbit", URL: "http://x"}}
			},
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  workers: 2\nlogging:\n  level: warn\n"), 0644))
	t.Setenv("MARSFEED_WORKERS", "3")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Fetch.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Fetch.Workers = 9
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 9, loaded.Fetch.Workers)
	assert.Equal(t, cfg.Trajectory.Documents, loaded.Trajectory.Documents)
}
