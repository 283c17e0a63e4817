package zaplogging

import (
	"github.com/core-tools/hsu-engine/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the production logging backend shared by every hsu-engine binary
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// New builds a zap logger at the given level ("debug", "info", "warn", "error").
// Development mode switches to the console encoder.
func New(level string, development bool) (*ZapLogger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.Level = zap.NewAtomicLevelAt(toZapLevel(lvl))
	config.DisableStacktrace = true

	base, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{
		base:  base,
		sugar: base.Sugar(),
	}, nil
}

// NewFromCore wraps an existing core, mostly useful for observing logs in tests
func NewFromCore(core zapcore.Core) *ZapLogger {
	base := zap.New(core)
	return &ZapLogger{
		base:  base,
		sugar: base.Sugar(),
	}
}

func toZapLevel(level int) zapcore.Level {
	switch level {
	case logging.DebugLevel:
		return zapcore.DebugLevel
	case logging.WarnLevel:
		return zapcore.WarnLevel
	case logging.ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LogFuncs adapts the sugared logger for logging.NewLogger
func (z *ZapLogger) LogFuncs() logging.LogFuncs {
	return logging.LogFuncs{
		Debugf: z.sugar.Debugf,
		Infof:  z.sugar.Infof,
		Warnf:  z.sugar.Warnf,
		Errorf: z.sugar.Errorf,
	}
}

// Named returns a prefixed logging.Logger backed by this zap logger
func (z *ZapLogger) Named(prefix string) logging.Logger {
	return logging.NewLogger(prefix, z.LogFuncs())
}

// Sync flushes buffered entries
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}
