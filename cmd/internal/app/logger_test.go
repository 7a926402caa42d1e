package app

import (
	"log/slog"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
		zap  zapcore.Level
	}{
		{in: "debug", want: slog.LevelDebug, zap: zapcore.DebugLevel},
		{in: "INFO", want: slog.LevelInfo, zap: zapcore.InfoLevel},
		{in: "warn", want: slog.LevelWarn, zap: zapcore.WarnLevel},
		{in: "warning", want: slog.LevelWarn, zap: zapcore.WarnLevel},
		{in: "error", want: slog.LevelError, zap: zapcore.ErrorLevel},
		{in: "unknown", want: slog.LevelInfo, zap: zapcore.InfoLevel},
		{in: "", want: slog.LevelInfo, zap: zapcore.InfoLevel},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
		if z := zapLevel(got); z != tc.zap {
			t.Fatalf("zapLevel(%v)=%v want=%v", got, z, tc.zap)
		}
	}
}
