package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

func TestNewLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, false)
	l.Debug("hidden")
	l.Info("Running module", "module", "CtsWebkitTestCases.apk")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record emitted at info level: %q", out)
	}
	if !strings.Contains(out, "Running module") || !strings.Contains(out, "module=CtsWebkitTestCases.apk") {
		t.Fatalf("expected info record with context, got %q", out)
	}

	buf.Reset()
	verbose := New(buf, true)
	verbose.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug record, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	if l.Enabled(context.Background(), log.LevelError) {
		t.Fatalf("discard logger should enable nothing")
	}
}
