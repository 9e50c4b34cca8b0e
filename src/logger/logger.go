package logger

import (
	"os"
	"strings"

	"bot-mirror/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A nil config logs at INFO to the console.
func NewLogger(config *models.MConfig, name string) *Logger {
	level := zapcore.InfoLevel
	format := "console"
	if config != nil {
		level = parseLevel(config.LogLevel)
		if config.LogFormat != "" {
			format = strings.ToLower(config.LogFormat)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	base := zap.New(core)

	return newNamed(base, name)
}

// -----------------------------------------------------------------------------

// NewNop returns a logger that discards everything. Used by tests.
func NewNop(name string) *Logger {
	return newNamed(zap.NewNop(), name)
}

// -----------------------------------------------------------------------------

// NewWithCore builds a logger on an existing zap core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core, name string) *Logger {
	return newNamed(zap.New(core), name)
}

// -----------------------------------------------------------------------------

func newNamed(base *zap.Logger, name string) *Logger {
	named := base
	if name != "" {
		named = base.Named(name)
	}
	return &Logger{
		name:  name,
		base:  base,
		sugar: named.Sugar(),
	}
}

// -----------------------------------------------------------------------------

// Component returns a logger for a sub-component sharing the same output.
func (l *Logger) Component(name string) *Logger {
	return newNamed(l.base, name)
}

// -----------------------------------------------------------------------------

// Name returns the component name
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries
func (l *Logger) Sync() {
	_ = l.base.Sync()
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
