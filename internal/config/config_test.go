package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"DEPRECHECK_CACHE_DIR", "DEPRECHECK_NO_CACHE", "DEPRECHECK_LOG_LEVEL",
		"DEPRECHECK_LOG_FORMAT", "DEPRECHECK_WORKERS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "deprecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  source: vendor/composer.lock
cache:
  dir: /tmp/from-file
check:
  roots: [lib, shared]
  ignore: [generated]
  workers: 3
  filter:
    - Foo\Bar::baz
    - Foo\Qux
  dedup: true
  fail: true
output:
  format: json
log:
  level: debug
`), 0o644))

	t.Setenv("DEPRECHECK_CACHE_DIR", "/tmp/from-env")
	t.Setenv("DEPRECHECK_NO_CACHE", "true")
	t.Setenv("DEPRECHECK_WORKERS", "8")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "vendor/composer.lock", cfg.Rules.Source)
	assert.Equal(t, "vendor", cfg.Rules.VendorDir, "defaults survive partial files")
	assert.Equal(t, "/tmp/from-env", cfg.Cache.Dir)
	assert.True(t, cfg.Cache.Disabled)
	assert.Equal(t, []string{"lib", "shared"}, cfg.Check.Roots)
	assert.Equal(t, []string{"generated"}, cfg.Check.Ignore)
	assert.Equal(t, 8, cfg.Check.Workers)
	assert.Equal(t, `Foo\Bar::baz,Foo\Qux`, cfg.FilterList())
	assert.True(t, cfg.Check.Dedup)
	assert.True(t, cfg.Check.Fail)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("check: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	t.Setenv("DEPRECHECK_WORKERS", "many")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
