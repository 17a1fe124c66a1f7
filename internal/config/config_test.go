package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanshare/internal/hashing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.True(t, cfg.Confine)
	assert.True(t, cfg.AllowKill)
	assert.False(t, cfg.ShowHidden)
}

func TestValidate(t *testing.T) {
	t.Run("normalizes hash", func(t *testing.T) {
		cfg := Default()
		cfg.Hash = "SHA256"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, string(hashing.SHA256), cfg.Hash)
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := Default()
		cfg.Port = 70000
		cfg.Bind = "not a host!"
		cfg.Hash = "crc32"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port 70000")
		assert.Contains(t, err.Error(), `"not a host!"`)
		assert.ErrorIs(t, err, hashing.ErrUnknownAlgorithm)
	})

	t.Run("host name bind", func(t *testing.T) {
		for _, host := range []string{"localhost", "myhost.local", "nas-01.lan.", "LAPTOP"} {
			cfg := Default()
			cfg.Bind = host
			assert.NoError(t, cfg.Validate(), host)
		}
		for _, host := range []string{"-bad.lan", "a..b", "under_score", "http://x"} {
			cfg := Default()
			cfg.Bind = host
			assert.Error(t, cfg.Validate(), host)
		}
		cfg := Default()
		cfg.Bind = "myhost.local"
		assert.Equal(t, "myhost.local:9000", cfg.Addr())
	})

	t.Run("ipv6 bind", func(t *testing.T) {
		cfg := Default()
		cfg.Bind = "::1"
		cfg.Port = 8080
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "[::1]:8080", cfg.Addr())
	})
}

func TestLoadFromViper(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lanshare.yaml")
	require.NoError(t, os.WriteFile(file, []byte("port: 8123\nshow_hidden: true\nhash: sha1\nallow_kill: false\n"), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(file)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Port)
	assert.True(t, cfg.ShowHidden)
	assert.Equal(t, "sha1", cfg.Hash)
	assert.False(t, cfg.AllowKill)
	assert.Equal(t, DefaultBind, cfg.Bind)
	assert.True(t, cfg.Confine)
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("hash", "whirlpool")
	_, err := Load(v)
	assert.ErrorIs(t, err, hashing.ErrUnknownAlgorithm)
}
