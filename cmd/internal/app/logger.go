package app

import (
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger builds a zap logger for env and exposes it through slog.
// format is json or console. The returned func flushes buffered entries.
func NewLogger(env, level, format string) (*slog.Logger, func(), error) {
	var zcfg zap.Config
	if env == "production" {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.DisableStacktrace = true
	} else {
		zcfg = zap.NewDevelopmentConfig()
		if format != "json" {
			zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(parseLogLevel(level)))
	if format == "json" {
		zcfg.Encoding = "json"
	} else {
		zcfg.Encoding = "console"
	}
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	zl, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}

	log := slog.New(zapslog.NewHandler(zl.Core()))
	slog.SetDefault(log)
	return log, func() { _ = zl.Sync() }, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
