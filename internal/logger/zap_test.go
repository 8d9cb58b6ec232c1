package logger

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		DebugLevel: zapcore.DebugLevel,
		"bogus":    defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(WarnLevel, zapcore.AddSync(&buf))

	log.Infow("sampling", "cycle", 1)
	log.Warnw("sensor_read_failed", "err", "timeout")
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "sampling") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "sensor_read_failed") || !strings.Contains(out, "WARN") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNamed_NilSafe(t *testing.T) {
	var l *Logger
	if l.Named("measure") == nil {
		t.Fatalf("expected a usable logger")
	}
}
