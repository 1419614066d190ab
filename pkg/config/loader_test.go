package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlement/pkg/config"
)

type defaultsConfig struct {
	Name    string        `env:"CFG_TEST_DEFAULT_NAME" envDefault:"entitlementd"`
	Workers int           `env:"CFG_TEST_DEFAULT_WORKERS" envDefault:"4"`
	Timeout time.Duration `env:"CFG_TEST_DEFAULT_TIMEOUT" envDefault:"5s"`
}

type overrideConfig struct {
	Name string `env:"CFG_TEST_OVERRIDE_NAME" envDefault:"default"`
}

type cachedConfig struct {
	Name string `env:"CFG_TEST_CACHED_NAME" envDefault:"default"`
}

type requiredConfig struct {
	DSN string `env:"CFG_TEST_REQUIRED_DSN,required"`
}

type prefixedConfig struct {
	Addr string `env:"ADDR" envDefault:":0"`
}

type fileConfig struct {
	Value string `env:"CFG_TEST_FILE_VALUE"`
}

type concurrentConfig struct {
	Value string `env:"CFG_TEST_CONCURRENT" envDefault:"same"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "entitlementd", cfg.Name)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CFG_TEST_OVERRIDE_NAME", "custom")

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg, config.WithoutCache()))
	assert.Equal(t, "custom", cfg.Name)
}

func TestLoad_Cached(t *testing.T) {
	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("CFG_TEST_CACHED_NAME", "changed")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first, second)

	var fresh cachedConfig
	require.NoError(t, config.Load(&fresh, config.WithoutCache()))
	assert.Equal(t, "changed", fresh.Name)
}

func TestLoad_Required(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg, config.WithoutCache())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.Panics(t, func() { config.MustLoad(&cfg, config.WithoutCache()) })
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *defaultsConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestLoad_Prefix(t *testing.T) {
	t.Setenv("OPS_ADDR", ":9090")

	var ops, plain prefixedConfig
	require.NoError(t, config.Load(&ops, config.WithPrefix("OPS_")))
	require.NoError(t, config.Load(&plain))

	assert.Equal(t, ":9090", ops.Addr)
	assert.Equal(t, ":0", plain.Addr)
}

func TestLoad_EnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CFG_TEST_FILE_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CFG_TEST_FILE_VALUE") })

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvFiles(path), config.WithoutCache()))
	assert.Equal(t, "from-file", cfg.Value)

	err := config.Load(&cfg, config.WithEnvFiles(filepath.Join(dir, "missing.env")))
	assert.ErrorIs(t, err, config.ErrEnvFile)
}

func TestLoad_Concurrent(t *testing.T) {
	config.Reset()

	var wg sync.WaitGroup
	results := make([]concurrentConfig, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = config.Load(&results[i])
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "same", r.Value)
	}
}
