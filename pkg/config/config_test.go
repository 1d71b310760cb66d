package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nificdc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Runner.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Tick.Std())
	assert.Equal(t, 100, cfg.RateLimit.BaseMax)
	assert.Equal(t, int64(15*60*1000), cfg.RateLimit.WindowMS)
	assert.Equal(t, 1000, cfg.Telemetry.BufferSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/nificdc-test
log:
  level: debug
scheduler:
  tick: 10s
runner:
  pool_size: 8
sandbox:
  max_duration: 2s
  max_complexity: 50
audit:
  cooldown: 90s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/nificdc-test", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Tick.Std())
	assert.Equal(t, 8, cfg.Runner.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.MaxDuration.Std())
	assert.Equal(t, 50, cfg.Sandbox.MaxComplexity)
	assert.Equal(t, 90*time.Second, cfg.Audit.Cooldown.Std())

	// Untouched knobs keep their defaults.
	assert.Equal(t, 100, cfg.Audit.BufferSize)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
runner:
  pool_size: 8
`)
	t.Setenv("NIFICDC_RUNNER_POOL_SIZE", "3")
	t.Setenv("NIFICDC_SCHEDULER_TICK", "5s")
	t.Setenv("NIFICDC_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Runner.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Tick.Std())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		body string
	}{
		{
			name: "zero pool size",
			env:  map[string]string{"NIFICDC_RUNNER_POOL_SIZE": "0"},
		},
		{
			name: "bad integer",
			env:  map[string]string{"NIFICDC_RUNNER_POOL_SIZE": "many"},
		},
		{
			name: "bad duration",
			env:  map[string]string{"NIFICDC_SCHEDULER_TICK": "soon"},
		},
		{
			name: "unknown log level",
			env:  map[string]string{"NIFICDC_LOG_LEVEL": "verbose"},
		},
		{
			name: "bad yaml duration",
			body: "scheduler:\n  tick: fast\n",
		},
		{
			name: "tiny rate limit window",
			body: "rate_limit:\n  window_ms: 5\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.False(t, errdefs.IsValidation(err))
}
