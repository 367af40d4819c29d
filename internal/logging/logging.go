// Package logging builds the zap logger shared by the application.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	mu     sync.Mutex
)

// New builds a console logger at the given level.
// Valid levels: "debug", "info", "warn", "error".
func New(level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return l.Sugar(), nil
}

// Init replaces the global logger.
func Init(level string) error {
	l, err := New(level)
	if err != nil {
		return err
	}

	mu.Lock()
	global = l
	mu.Unlock()

	return nil
}

// L returns the global logger, creating an info-level one if Init was never called.
func L() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		l, err := New("info")
		if err != nil {
			l = zap.NewNop().Sugar()
		}
		global = l
	}

	return global
}

// Sync flushes buffered entries of the global logger.
func Sync() {
	mu.Lock()
	l := global
	mu.Unlock()

	if l != nil {
		_ = l.Sync()
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
