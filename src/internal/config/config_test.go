package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultPopulatesNativeArch(t *testing.T) {
	cfg := NewDefault()
	assert.Equal(t, DefaultChannelURL, cfg.Channel.URL)
	assert.NotEmpty(t, cfg.Install.HostArch)
	assert.Equal(t, cfg.Install.HostArch, cfg.Install.TargetArch)
	assert.Equal(t, 2, cfg.Install.Concurrency)
}

func TestLoadWithMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultChannelURL, cfg.Channel.URL)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := NewDefault()
	cfg.Channel.URL = "https://example.invalid/channel"
	cfg.Install.Root = "/opt/msvc-kit"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/channel", loaded.Channel.URL)
	assert.Equal(t, "/opt/msvc-kit", loaded.Install.Root)
}

func TestApplyEnvOverridesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := NewDefault()
	cfg.Channel.URL = "https://from-file.invalid/channel"
	require.NoError(t, Save(path, cfg))

	t.Setenv("MSVCKIT_CHANNEL_URL", "https://from-env.invalid/channel")
	t.Setenv("MSVCKIT_INCLUDE_MFC", "true")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.invalid/channel", loaded.Channel.URL)
	assert.True(t, loaded.Install.IncludeMFC)
}

func TestApplyEnvIgnoresInvalidConcurrency(t *testing.T) {
	cfg := NewDefault()
	cfg.Install.Concurrency = 2
	t.Setenv("MSVCKIT_CONCURRENCY", "not-a-number")
	applyEnv(&cfg)
	assert.Equal(t, 2, cfg.Install.Concurrency)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
