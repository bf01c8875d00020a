package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadWithPath(t *testing.T) {
	path := writeConfig(t, "cachedir: /var/cache/sim\nverbose: true\n")

	cfg, err := Load(WithPath(path))
	require.NoError(t, err)

	dir, ok := cfg.CacheDir()
	assert.True(t, ok)
	assert.Equal(t, "/var/cache/sim", dir)
	assert.True(t, cfg.Bool("verbose"))
	assert.False(t, cfg.Bool("missing"))
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "cachedir: /from/file\n")
	t.Setenv("SNAPLOAD_CACHEDIR", "/from/env")
	t.Setenv("SNAPLOAD_EXTRA", "7")

	cfg, err := Load(WithPath(path))
	require.NoError(t, err)

	dir, _ := cfg.CacheDir()
	assert.Equal(t, "/from/env", dir)
	extra, ok := cfg.String("extra")
	assert.True(t, ok)
	assert.Equal(t, "7", extra)
}

func TestEnvConfigPath(t *testing.T) {
	path := writeConfig(t, "cachedir: /env/selected\n")
	t.Setenv("SNAPLOAD_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	dir, _ := cfg.CacheDir()
	assert.Equal(t, "/env/selected", dir)
	// the selector itself must not leak into the config
	_, ok := cfg.String("config_path")
	assert.False(t, ok)
}

func TestFromFileEmptyResource(t *testing.T) {
	_, err := FromFile("")
	assert.ErrorIs(t, err, ErrEmptyResource)
}

func TestFromFilePackagedDefault(t *testing.T) {
	// resource "config.yaml" with no file on disk resolves to the packaged
	// default; point the home dir somewhere empty to guarantee that
	t.Setenv("HOME", t.TempDir())

	cfg, err := FromFile("config.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.Bool("copied_default"))
	_, ok := cfg.CacheDir()
	assert.False(t, ok, "default config must not set a cache dir")
}

func TestFromFilesMerge(t *testing.T) {
	a := writeConfig(t, "cachedir: /x\nunits:\n  length: kpc\n")
	b := writeConfig(t, "verbose: true\nunits:\n  mass: msun\n")

	cfg, err := FromFiles(a, b)
	require.NoError(t, err)

	dir, _ := cfg.CacheDir()
	assert.Equal(t, "/x", dir)
	assert.True(t, cfg.Bool("verbose"))
	units, ok := cfg["units"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "kpc", units["length"])
	assert.Equal(t, "msun", units["mass"])
}

func TestFromFilesConflict(t *testing.T) {
	a := writeConfig(t, "units:\n  length: kpc\n")
	b := writeConfig(t, "units:\n  length: mpc\n")

	_, err := FromFiles(a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "units.length")
}

func TestFromFilesEqualLeavesAgree(t *testing.T) {
	a := writeConfig(t, "cachedir: /same\n")
	b := writeConfig(t, "cachedir: /same\n")

	cfg, err := FromFiles(a, b)
	require.NoError(t, err)
	dir, _ := cfg.CacheDir()
	assert.Equal(t, "/same", dir)
}

func TestLoadMaterializesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Bool("copied_default"))

	written := filepath.Join(home, ".config", "snapload", "config.yaml")
	_, err = os.Stat(written)
	assert.NoError(t, err, "default config should be written on first load")

	// second CopyDefault without overwrite refuses to clobber
	err = CopyDefault(false)
	assert.Error(t, err)
	require.NoError(t, CopyDefault(true))
}
