//go:build unix

package engineconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/managedprocess"
	"github.com/core-tools/hsu-engine/pkg/reaper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(*testing.T, *EngineConfig)
	}{
		{
			name: "valid comprehensive config",
			configYAML: `
engine:
  socket: "/run/cosi/engine.sock"
  log_level: "debug"
  metrics_address: "127.0.0.1:9102"
  exit_on_signal: true

runtime:
  executable: "/usr/lib/cosi/runtime-linux-x86_64"
  socket: "/run/cosi/runtime.sock"
  tcp_address: "127.0.0.1:50001"

discovery:
  plugins_dir: "/opt/cosi/plugins"
  generators_dir: "/opt/cosi/generators"
  arch: "aarch64"

supervision:
  teardown_delay: 500ms
  handoff_retry: 100ms
  restart:
    condition: "on-failure"
    strategy: "exponential"
    delay: 200ms
    max_delay: 10s
    multiplier: 1.5
    max_restarts: 5
    window: 2m
`,
			validate: func(t *testing.T, config *EngineConfig) {
				assert.Equal(t, "/run/cosi/engine.sock", config.Engine.Socket)
				assert.Equal(t, "debug", config.Engine.LogLevel)
				assert.Equal(t, "127.0.0.1:9102", config.Engine.MetricsAddress)
				assert.True(t, config.Engine.ExitOnSignal)

				assert.Equal(t, "/usr/lib/cosi/runtime-linux-x86_64", config.Runtime.Executable)
				assert.Equal(t, "127.0.0.1:50001", config.Runtime.TCPAddress)

				assert.Equal(t, "/opt/cosi/plugins", config.Discovery.PluginsDir)
				assert.Equal(t, "aarch64", config.Platform().Arch)

				assert.Equal(t, 500*time.Millisecond, config.Supervision.TeardownDelay)
				assert.Equal(t, 100*time.Millisecond, config.Supervision.HandOffRetry)

				restart := config.Supervision.Restart
				assert.Equal(t, RestartStrategyExponential, restart.Strategy)
				assert.Equal(t, 200*time.Millisecond, restart.Delay)
				assert.Equal(t, 1.5, restart.Multiplier)
				assert.Equal(t, 5, restart.MaxRestarts)
				assert.Equal(t, 2*time.Minute, restart.Window)

				assert.NoError(t, ValidateConfig(config))
			},
		},
		{
			name:       "minimal config gets defaults",
			configYAML: "engine:\n  log_level: warn\n",
			validate: func(t *testing.T, config *EngineConfig) {
				assert.Equal(t, DefaultEngineSocket, config.Engine.Socket)
				assert.Equal(t, DefaultRuntimeAddress, config.Runtime.TCPAddress)
				assert.Equal(t, DefaultPluginsDir, config.Discovery.PluginsDir)
				assert.Equal(t, DefaultGeneratorsDir, config.Discovery.GeneratorsDir)
				assert.Equal(t, managedprocess.DefaultTeardownDelay, config.Supervision.TeardownDelay)
				assert.Equal(t, managedprocess.DefaultHandOffRetry, config.Supervision.HandOffRetry)
				assert.Equal(t, RestartStrategyImmediate, config.Supervision.Restart.Strategy)
				assert.Equal(t, "always", config.Supervision.Restart.Condition)
				assert.NoError(t, ValidateConfig(config))
			},
		},
		{
			name:        "invalid YAML",
			configYAML:  "engine: [socket",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfigFromFile(writeConfig(t, tt.configYAML))
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigFromMissingFile(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*EngineConfig)
	}{
		{"bad log level", func(c *EngineConfig) { c.Engine.LogLevel = "loud" }},
		{"unknown strategy", func(c *EngineConfig) { c.Supervision.Restart.Strategy = "sometimes" }},
		{"unknown condition", func(c *EngineConfig) { c.Supervision.Restart.Condition = "maybe" }},
		{"fixed without delay", func(c *EngineConfig) { c.Supervision.Restart.Strategy = RestartStrategyFixed }},
		{"negative budget", func(c *EngineConfig) { c.Supervision.Restart.MaxRestarts = -1 }},
		{"negative teardown", func(c *EngineConfig) { c.Supervision.TeardownDelay = -time.Second }},
		{"exponential below initial", func(c *EngineConfig) {
			c.Supervision.Restart.Strategy = RestartStrategyExponential
			c.Supervision.Restart.Delay = time.Second
			c.Supervision.Restart.MaxDelay = time.Millisecond
			c.Supervision.Restart.Multiplier = 2
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := ValidateConfig(config)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}

	assert.Error(t, ValidateConfig(nil))
	assert.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestNewPolicyBuildsIndependentInstances(t *testing.T) {
	config := DefaultConfig()
	config.Supervision.Restart = RestartConfig{
		Condition:   "always",
		Strategy:    RestartStrategyFixed,
		Delay:       time.Second,
		MaxRestarts: 1,
		Window:      time.Minute,
	}

	options := config.MonitorOptions()
	require.NotNil(t, options.NewPolicy)

	crashed := reaper.ExitStatus{PID: 1, Code: 1}
	first := options.NewPolicy()
	delay, ok := first.Next(crashed, managedprocess.RestartStats{})
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)
	_, ok = first.Next(crashed, managedprocess.RestartStats{})
	assert.False(t, ok, "budget of one restart is spent")

	second := options.NewPolicy()
	_, ok = second.Next(crashed, managedprocess.RestartStats{})
	assert.True(t, ok, "a fresh policy has its own budget")
}

func TestNewPolicyHonoursCondition(t *testing.T) {
	policy := RestartConfig{Condition: "on-failure", Strategy: RestartStrategyImmediate}.NewPolicy()

	_, ok := policy.Next(reaper.ExitStatus{Code: 0}, managedprocess.RestartStats{})
	assert.False(t, ok)
	delay, ok := policy.Next(reaper.ExitStatus{Code: 2}, managedprocess.RestartStats{})
	assert.True(t, ok)
	assert.Zero(t, delay)

	policy = RestartConfig{}.NewPolicy()
	_, ok = policy.Next(reaper.ExitStatus{Code: 0}, managedprocess.RestartStats{})
	assert.True(t, ok, "exit 0 is restarted by default")
}

func TestValidateConfigAcceptsRelativeSocket(t *testing.T) {
	for _, socket := range []string{"engine.sock", "run/engine.sock", "./engine.sock"} {
		config := DefaultConfig()
		config.Engine.Socket = socket
		assert.NoError(t, ValidateConfig(config), "socket %q", socket)
	}
}
