// Package logging builds the logrus logger used by the command line tool.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Options select the log format and verbosity.
type Options struct {
	Verbose bool
	JSON    bool
	Output  io.Writer
}

// New returns a logger tagged with the tool's name. Logs go to opts.Output,
// which the caller usually points at stderr to keep stdout for results.
func New(opts Options) *logrus.Entry {
	logger := logrus.New()
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	}

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
		})
	}

	logger.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logrus.NewEntry(logger).WithField("app", "minicaldav")
}
