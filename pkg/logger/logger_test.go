package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewAppliesLevel(t *testing.T) {
	log, err := New("warn", false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be filtered at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected error to be enabled")
	}
}

func TestNewIgnoresUnknownLevel(t *testing.T) {
	log, err := New("loud", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("development logger should keep its debug default")
	}
}

func TestNamedWithNilBase(t *testing.T) {
	if Named(nil, "service") == nil {
		t.Fatalf("expected a no-op logger")
	}
}
