// Package logging provides the structured logger shared across the engine.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so call sites depend on this package rather
// than on logrus directly.
type Logger struct {
	*logrus.Logger
}

// Config controls level, format, and output destination.
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output string // "stdout", "stderr", or a file path
}

// New builds a Logger from cfg, defaulting unset fields to info/text/stdout.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(orDefault(cfg.Level, "info")))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(orDefault(cfg.Format, "text")) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	l.SetOutput(resolveOutput(cfg.Output))

	return &Logger{Logger: l}
}

// NewDefault returns an info/text/stdout logger tagged with component.
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text", Output: "stdout"})
	l.Logger.AddHook(&componentHook{component: component})
	return l
}

func resolveOutput(output string) io.Writer {
	switch strings.ToLower(orDefault(output, "stdout")) {
	case "stderr":
		return os.Stderr
	case "stdout", "":
		return os.Stdout
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return os.Stdout
		}
		return io.MultiWriter(os.Stdout, f)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

type componentHook struct {
	component string
}

func (h *componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *componentHook) Fire(entry *logrus.Entry) error {
	entry.Data["component"] = h.component
	return nil
}

// WithField returns a logrus.Entry with a single field attached.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a logrus.Entry with multiple fields attached.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
