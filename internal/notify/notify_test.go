package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminal(&buf)

	n.Chime()
	n.Toast(LevelSuccess, "New order #12")

	if got, want := buf.String(), "\a[success] New order #12\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	n := NewLogNotifier(logger)

	n.Toast(LevelWarning, "Connection lost")
	n.Toast(LevelError, "Connection error")
	n.Chime()

	out := buf.String()
	for _, want := range []string{
		"level=WARN msg=\"Connection lost\"",
		"level=ERROR msg=\"Connection error\"",
		"msg=chime",
		"component=notify",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewTerminal(&a), NewTerminal(&b), Nop{}}

	m.Toast(LevelInfo, "hi")
	m.Chime()

	if a.String() != b.String() || a.String() != "[info] hi\n\a" {
		t.Errorf("outputs = %q, %q", a.String(), b.String())
	}
}
