// Package notify delivers user-facing reactions: a chime and short status toasts.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier presents reactions to the user. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Chime()
	Toast(level Level, msg string)
}

// Nop discards every reaction.
type Nop struct{}

func (Nop) Chime()              {}
func (Nop) Toast(Level, string) {}

// LogNotifier writes reactions to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) Chime() {
	n.logger.Debug("chime")
}

func (n *LogNotifier) Toast(level Level, msg string) {
	switch level {
	case LevelError:
		n.logger.Error(msg, "toast", level)
	case LevelWarning:
		n.logger.Warn(msg, "toast", level)
	default:
		n.logger.Info(msg, "toast", level)
	}
}

// Terminal rings the terminal bell for a chime and prints toasts as lines.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Chime() {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, "\a")
}

func (t *Terminal) Toast(level Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "[%s] %s\n", level, msg)
}

// Multi fans reactions out to several notifiers.
type Multi []Notifier

func (m Multi) Chime() {
	for _, n := range m {
		n.Chime()
	}
}

func (m Multi) Toast(level Level, msg string) {
	for _, n := range m {
		n.Toast(level, msg)
	}
}
