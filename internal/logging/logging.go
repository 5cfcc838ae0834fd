// Package logging holds the logrus loggers shared by go-authclient packages.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Discard returns a logger that drops every entry.
// Packages use it when the caller did not ask for logging.
func Discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Standard returns the process-wide logrus logger.
func Standard() logrus.FieldLogger {
	return logrus.StandardLogger()
}

// New builds a text logger writing to stderr; verbose enables debug entries.
func New(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
