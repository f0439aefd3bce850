// Package obslog is a thin wrapper around zap used by the daemon
// entrypoint, cmd/ocash-syncd. Library packages (field, poseidon2,
// wallet, planner) stay logger-free and communicate through return values,
// matching the teacher repo's internal packages.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps *zap.SugaredLogger with the small set of calls this SDK uses.
type Logger struct {
	s *zap.SugaredLogger
}

// Config controls the base logger.
type Config struct {
	Level      string // debug, info, warn, error
	Production bool   // JSON output; false uses a human console encoder
}

// DefaultConfig returns the daemon's default logging configuration.
func DefaultConfig() *Config {
	return &Config{Level: "info", Production: false}
}

// New builds a Logger from cfg.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if !cfg.Production {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	base, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: base.Sugar()}, nil
}

// Noop returns a Logger that discards everything, useful in tests.
func Noop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Debugw(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// With returns a child logger with persistent key/value pairs attached, the
// idiom used to scope a logger to a chain id or operation id.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.s.Sync() }
