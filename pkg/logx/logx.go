package logx

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu sync.RWMutex
	lg *zap.SugaredLogger
)

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Init builds the process logger. service is attached to every entry.
func Init(level, service string) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	if service != "" {
		z = z.With(zap.String("service", service))
	}
	Set(z.Sugar())
}

// Set replaces the process logger; tests use it with an observer core.
func Set(l *zap.SugaredLogger) {
	mu.Lock()
	lg = l
	mu.Unlock()
}

func L() *zap.SugaredLogger {
	mu.RLock()
	l := lg
	mu.RUnlock()
	if l == nil {
		Init("info", "")
		return L()
	}
	return l
}

func Sync() { _ = L().Sync() }
