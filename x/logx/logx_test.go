package logx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "": slog.LevelInfo, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("%q: got %v,%v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)
	l.Info("hidden")
	l.Warn("shown", "op", "position")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "op=position") {
		t.Fatalf("out=%q", out)
	}
	if OrDiscard(nil) == nil {
		t.Fatal("nil logger")
	}
}
