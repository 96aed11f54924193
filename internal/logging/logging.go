// Package logging adapts logrus to the small Logger capability the rest of
// KuberNix depends on, the same shape the teacher CLI's clustersetup
// package used for its console logger, but structured and leveled.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the capability every component and subsystem logs through.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	// WithComponent returns a logger that tags every line with a component
	// name, so interleaved component output stays attributable.
	WithComponent(name string) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds the root Logger. level is one of trace|debug|info|warn|error,
// matching the --log-level CLI flag (spec.md §6).
func New(level string, out io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops all output, used in tests.
func Discard() Logger {
	return New("error", io.Discard)
}

func init() {
	// Stderr is the default sink for anything logged before New() is
	// called, e.g. flag-parsing failures in cmd/kubernix.
	logrus.SetOutput(os.Stderr)
}

func (l *logrusLogger) Info(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *logrusLogger) Error(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *logrusLogger) Debug(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
func (l *logrusLogger) Warn(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }

func (l *logrusLogger) WithComponent(name string) Logger {
	return &logrusLogger{entry: l.entry.WithField("component", name)}
}
