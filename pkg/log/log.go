// Package log provides leveled, structured logging for the HTTP client
// engine. It is a thin layer over zap: components receive a Logger and
// attach request or task scoped fields with With/Named. The engine never
// changes behavior based on the logger; it is a sink only.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface consumed by every package in this module.
type Logger interface {
	// Named adds a new path segment to the logger's name. Segments are
	// joined by periods.
	Named(s string) Logger

	// With creates a child logger with the given structured context.
	// Fields added to the child don't affect the parent, and vice versa.
	With(fields ...Field) Logger

	// Debug logs a message at DebugLevel with the given fields.
	Debug(msg string, fields ...Field)

	// Info logs a message at InfoLevel with the given fields.
	Info(msg string, fields ...Field)

	// Warn logs a message at WarnLevel with the given fields.
	Warn(msg string, fields ...Field)

	// Error logs a message at ErrorLevel with the given fields.
	Error(msg string, fields ...Field)

	// Level reports the minimum enabled level for this logger.
	Level() Level
}

// Discard is the logger used when the caller does not provide one. It drops
// every entry. Replace it (or pass an explicit logger) to capture engine
// logs.
var Discard Logger = &logger{Logger: zap.NewNop()}

type logger struct {
	*zap.Logger
}

var _ Logger = (*logger)(nil)

// New builds a production logger writing JSON entries to stderr, enabled at
// the given level and above. The level can be adjusted at runtime through
// the AtomicLevel.
func New(lvl AtomicLevel, opts ...Option) Logger {
	cfg := config{writer: zapcore.Lock(zapcore.AddSync(os.Stderr))}
	for _, opt := range opts {
		opt(&cfg)
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	var enc zapcore.Encoder
	if cfg.console {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, cfg.writer, lvl)
	return &logger{Logger: zap.New(core)}
}

func (l *logger) Named(s string) Logger {
	return &logger{Logger: l.Logger.Named(s)}
}

func (l *logger) With(fields ...Field) Logger {
	return &logger{Logger: l.Logger.With(fields...)}
}

func (l *logger) Level() Level {
	return zapcore.LevelOf(l.Core())
}

type config struct {
	writer  zapcore.WriteSyncer
	console bool
}

// Option configures a Logger built by New.
type Option func(*config)

// WithWriter directs log output to the given WriteSyncer instead of stderr.
func WithWriter(w zapcore.WriteSyncer) Option {
	return func(c *config) { c.writer = w }
}

// WithConsoleEncoding switches from JSON to a human friendly console
// encoding.
func WithConsoleEncoding() Option {
	return func(c *config) { c.console = true }
}
