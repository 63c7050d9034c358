// Package logger - Structured logging for the detection pipeline.
package logger

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures a logger.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// JSON selects the production JSON encoder instead of the console encoder.
	JSON bool
}

// ParseLevel converts a level name to a zap level.
//
// Arguments:
//   - level: The level name, case-insensitive. Empty means info.
//
// Returns:
//   - zapcore.Level: The level.
//   - error: An error if the name is not a known level.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel, errors.Wrapf(err, "invalid log level %q", level)
	}
	return l, nil
}

// New builds a sugared logger writing to stderr. Stdout is left for results.
//
// Arguments:
//   - opts: The logger options.
//
// Returns:
//   - *zap.SugaredLogger: The logger.
//   - error: An error if the level is invalid.
func New(opts Options) (*zap.SugaredLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		config := zap.NewDevelopmentEncoderConfig()
		config.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(config)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core).Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Component returns a child logger tagged with a component name. A nil base yields a
// no-op logger.
func Component(base *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if base == nil {
		return Nop()
	}
	return base.Named(name)
}
