package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollsum/internal/gateway"
	"rollsum/internal/summary"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"ARK_API_KEY", "OPENAI_API_KEY", "ARK_MODEL_NAME", "ARK_BASE_URL",
		"ROLLSUM_MODEL_API_KEY", "ROLLSUM_MODEL_MODEL", "ROLLSUM_MODEL_BASE_URL", "ROLLSUM_SUMMARY_VARIANT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  model: my-model
  temperature: 0.7
summary:
  variant: embedded
  threshold: 8
elastic:
  addresses: ["http://localhost:9200"]
session:
  db_path: /tmp/x.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my-model", cfg.Model.Model)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-6)
	assert.Equal(t, "embedded", cfg.Summary.Variant)
	require.NotNil(t, cfg.Summary.Threshold)
	assert.Equal(t, 8, *cfg.Summary.Threshold)
	assert.Equal(t, summary.DefaultKeepRecent, cfg.Summary.KeepRecent)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elastic.Addresses)
	assert.Equal(t, "/tmp/x.db", cfg.Session.DBPath)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func assertDefaults(t *testing.T, cfg *Config) {
	t.Helper()
	def := Default()
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.Model, cfg.Model)
	assert.Equal(t, def.Summary, cfg.Summary)
	assert.Empty(t, cfg.Elastic.Addresses)
	assert.Equal(t, def.Elastic.Index, cfg.Elastic.Index)
	assert.Equal(t, def.Session, cfg.Session)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ARK_MODEL_NAME", "env-model")
	t.Setenv("ROLLSUM_SUMMARY_VARIANT", "embedded")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Model.APIKey)
	assert.Equal(t, "env-model", cfg.Model.Model)
	assert.Equal(t, "embedded", cfg.Summary.Variant)
}

func TestLoadZeroThresholdIsKept(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("summary:\n  threshold: 0\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Summary.Threshold)
	assert.Equal(t, 0, *cfg.Summary.Threshold)

	chdir(t, t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.Summary.Threshold)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cases := map[string]struct {
		body string
		want error
	}{
		"variant":     {"summary:\n  variant: nested\n", summary.ErrUnknownVariant},
		"threshold":   {"summary:\n  threshold: -1\n", ErrInvalidThreshold},
		"keep":        {"summary:\n  keep_recent: -2\n", ErrInvalidKeepRecent},
		"temperature": {"model:\n  temperature: 3\n", gateway.ErrInvalidTemperature},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))
	assert.Error(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
