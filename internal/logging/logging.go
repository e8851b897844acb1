// Package logging builds the logrus logger shared by the CLI commands.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to w. Verbose loggers emit debug
// entries with timestamps; others only warnings and above.
func New(w io.Writer, verbose, colored bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    !colored,
		ForceColors:      colored,
		DisableTimestamp: !verbose,
		FullTimestamp:    verbose,
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
