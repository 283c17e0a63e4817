//go:build unix

package engineconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/loader"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/managedprocess"
	"github.com/core-tools/hsu-engine/pkg/transport"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEngineSocket   = "/var/run/cosi/engine.sock"
	DefaultRuntimeSocket  = "/var/run/cosi/runtime.sock"
	DefaultRuntimeAddress = transport.DefaultTCPAddress
	DefaultRuntimePath    = "/usr/lib/cosi/runtime"
	DefaultPluginsDir     = "/usr/lib/cosi/plugins"
	DefaultGeneratorsDir  = "/usr/lib/cosi/generators"
)

// EngineConfig represents the top-level configuration file structure
type EngineConfig struct {
	Engine      EngineOptions      `yaml:"engine"`
	Runtime     RuntimeOptions     `yaml:"runtime"`
	Discovery   DiscoveryOptions   `yaml:"discovery"`
	Supervision SupervisionOptions `yaml:"supervision"`
}

type EngineOptions struct {
	// Socket is the rendezvous address handed to every supervised executable
	Socket          string        `yaml:"socket"`
	LogLevel        string        `yaml:"log_level,omitempty"`
	Development     bool          `yaml:"development,omitempty"`
	MetricsAddress  string        `yaml:"metrics_address,omitempty"`
	ExitOnSignal    bool          `yaml:"exit_on_signal,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

type RuntimeOptions struct {
	// Executable is supervised like a plugin; empty disables it
	Executable string `yaml:"executable"`
	Socket     string `yaml:"socket"`
	TCPAddress string `yaml:"tcp_address"`
}

type DiscoveryOptions struct {
	PluginsDir    string `yaml:"plugins_dir"`
	GeneratorsDir string `yaml:"generators_dir"`
	OS            string `yaml:"os,omitempty"`
	Arch          string `yaml:"arch,omitempty"`
}

type SupervisionOptions struct {
	TeardownDelay time.Duration `yaml:"teardown_delay,omitempty"`
	HandOffRetry  time.Duration `yaml:"handoff_retry,omitempty"`
	Restart       RestartConfig `yaml:"restart"`
}

type RestartStrategy string

const (
	RestartStrategyImmediate   RestartStrategy = "immediate"
	RestartStrategyFixed       RestartStrategy = "fixed"
	RestartStrategyExponential RestartStrategy = "exponential"
)

// RestartConfig describes the policy every Monitor gets its own instance of.
// The zero value restarts immediately and forever.
type RestartConfig struct {
	Condition     string          `yaml:"condition,omitempty"`
	Strategy      RestartStrategy `yaml:"strategy,omitempty"`
	Delay         time.Duration   `yaml:"delay,omitempty"`
	MaxDelay      time.Duration   `yaml:"max_delay,omitempty"`
	Multiplier    float64         `yaml:"multiplier,omitempty"`
	ResetAfter    time.Duration   `yaml:"reset_after,omitempty"`
	MaxRestarts   int             `yaml:"max_restarts,omitempty"`
	Window        time.Duration   `yaml:"window,omitempty"`
	RatePerMinute float64         `yaml:"rate_per_minute,omitempty"`
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *EngineConfig {
	config := &EngineConfig{}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads engine configuration from a YAML file
func LoadConfigFromFile(filename string) (*EngineConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config EngineConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)
	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *EngineConfig) {
	if config.Engine.Socket == "" {
		config.Engine.Socket = DefaultEngineSocket
	}
	if config.Engine.LogLevel == "" {
		config.Engine.LogLevel = "info"
	}
	if config.Engine.ShutdownTimeout == 0 {
		config.Engine.ShutdownTimeout = transport.DefaultShutdownTimeout
	}

	if config.Runtime.Socket == "" {
		config.Runtime.Socket = DefaultRuntimeSocket
	}
	if config.Runtime.TCPAddress == "" {
		config.Runtime.TCPAddress = DefaultRuntimeAddress
	}

	if config.Discovery.PluginsDir == "" {
		config.Discovery.PluginsDir = DefaultPluginsDir
	}
	if config.Discovery.GeneratorsDir == "" {
		config.Discovery.GeneratorsDir = DefaultGeneratorsDir
	}

	if config.Supervision.TeardownDelay == 0 {
		config.Supervision.TeardownDelay = managedprocess.DefaultTeardownDelay
	}
	if config.Supervision.HandOffRetry == 0 {
		config.Supervision.HandOffRetry = managedprocess.DefaultHandOffRetry
	}

	restart := &config.Supervision.Restart
	if restart.Condition == "" {
		restart.Condition = string(managedprocess.RestartAlways)
	}
	if restart.Strategy == "" {
		restart.Strategy = RestartStrategyImmediate
	}
	if restart.Strategy == RestartStrategyExponential {
		if restart.Delay == 0 {
			restart.Delay = 100 * time.Millisecond
		}
		if restart.MaxDelay == 0 {
			restart.MaxDelay = 30 * time.Second
		}
		if restart.Multiplier == 0 {
			restart.Multiplier = 2
		}
	}
	if restart.MaxRestarts > 0 && restart.Window == 0 {
		restart.Window = time.Minute
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *EngineConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if _, err := logging.ParseLevel(config.Engine.LogLevel); err != nil {
		return errors.NewValidationError("invalid engine log level", err)
	}
	if _, err := transport.ParseAddress(config.Engine.Socket); err != nil {
		return errors.NewValidationError("invalid engine socket", err)
	}
	if _, err := transport.ParseAddress(config.Runtime.TCPAddress); err != nil {
		return errors.NewValidationError("invalid runtime TCP address", err)
	}

	if err := validateRestartConfig(&config.Supervision.Restart); err != nil {
		return errors.NewValidationError("invalid restart configuration", err)
	}
	if config.Supervision.TeardownDelay < 0 || config.Supervision.HandOffRetry < 0 {
		return errors.NewValidationError("supervision delays cannot be negative", nil)
	}

	return nil
}

func validateRestartConfig(restart *RestartConfig) error {
	if _, err := managedprocess.ParseRestartCondition(restart.Condition); err != nil {
		return err
	}

	switch restart.Strategy {
	case RestartStrategyImmediate:
	case RestartStrategyFixed:
		if restart.Delay <= 0 {
			return errors.NewValidationError("fixed strategy requires a positive delay", nil)
		}
	case RestartStrategyExponential:
		if restart.Multiplier < 1 {
			return errors.NewValidationError("multiplier must be at least 1", nil).WithContext("multiplier", restart.Multiplier)
		}
		if restart.MaxDelay < restart.Delay {
			return errors.NewValidationError("max delay is below the initial delay", nil)
		}
	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported restart strategy: %s", restart.Strategy), nil).
			WithContext("supported_strategies", "immediate, fixed, exponential")
	}

	if restart.MaxRestarts < 0 || restart.RatePerMinute < 0 {
		return errors.NewValidationError("restart limits cannot be negative", nil)
	}
	return nil
}

// MonitorOptions turns the supervision section into per-Monitor options.
// Every call of NewPolicy builds a fresh, independent policy chain.
func (c *EngineConfig) MonitorOptions() managedprocess.MonitorOptions {
	restart := c.Supervision.Restart
	return managedprocess.MonitorOptions{
		Manager: managedprocess.ManagerOptions{
			TeardownDelay: c.Supervision.TeardownDelay,
			HandOffRetry:  c.Supervision.HandOffRetry,
		},
		NewPolicy: restart.NewPolicy,
	}
}

// NewPolicy builds condition → budget → rate limit → delay strategy.
func (r RestartConfig) NewPolicy() managedprocess.RestartPolicy {
	var policy managedprocess.RestartPolicy
	switch r.Strategy {
	case RestartStrategyFixed:
		policy = managedprocess.FixedDelay{Delay: r.Delay}
	case RestartStrategyExponential:
		policy = &managedprocess.ExponentialBackoff{
			Initial:    r.Delay,
			Max:        r.MaxDelay,
			Multiplier: r.Multiplier,
			ResetAfter: r.ResetAfter,
		}
	default:
		policy = managedprocess.AlwaysRestart{}
	}

	if r.RatePerMinute > 0 {
		policy = managedprocess.RateLimited{
			Limiter: rate.NewLimiter(rate.Limit(r.RatePerMinute/60), 1),
			Inner:   policy,
		}
	}
	if r.MaxRestarts > 0 {
		policy = &managedprocess.RestartBudget{
			Max:    r.MaxRestarts,
			Window: r.Window,
			Inner:  policy,
		}
	}

	condition, err := managedprocess.ParseRestartCondition(r.Condition)
	if err != nil || condition == managedprocess.RestartAlways {
		return policy
	}
	return managedprocess.OnCondition{Condition: condition, Inner: policy}
}

// Platform returns the discovery platform, host values filling the gaps.
func (c *EngineConfig) Platform() loader.Platform {
	platform := loader.HostPlatform()
	if c.Discovery.OS != "" {
		platform.OS = c.Discovery.OS
	}
	if c.Discovery.Arch != "" {
		platform.Arch = c.Discovery.Arch
	}
	return platform
}
