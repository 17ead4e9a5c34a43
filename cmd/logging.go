// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

var logger = loggo.GetLogger("agentbox.cmd")

const (
	// LoggingConfigEnvKey is consulted when no --logging-config is given.
	LoggingConfigEnvKey = "AGENTBOX_LOGGING_CONFIG"

	// DefaultLoggingConfig keeps progress visible on stderr.
	DefaultLoggingConfig = "<root>=INFO"

	logFileWriter = "logfile"
)

// Log supplies the necessary functionality for Commands that wish to set
// up logging.
type Log struct {
	// Path is a file to log to, rotated by size.
	Path string

	// Config is a loggo specification such as "<root>=INFO;agentbox.storage=DEBUG".
	Config string

	// Debug logs everything at DEBUG.
	Debug bool

	// Quiet keeps log output off stderr; only the log file receives it.
	Quiet bool

	// MaxSizeMB and MaxBackups bound the rotated log file.
	MaxSizeMB  int
	MaxBackups int

	file *lumberjack.Logger
}

// AddFlags adds appropriate flags to f.
func (l *Log) AddFlags(f *gnuflag.FlagSet) {
	f.StringVar(&l.Path, "log-file", "", "Path to write log to")
	f.StringVar(&l.Config, "logging-config", os.Getenv(LoggingConfigEnvKey), "Specify log levels for modules")
	f.BoolVar(&l.Debug, "debug", false, "Equivalent to --logging-config=<root>=DEBUG")
	f.BoolVar(&l.Quiet, "q", false, "Do not log to stderr")
	f.BoolVar(&l.Quiet, "quiet", false, "")
}

func (l *Log) logsToStderr() bool {
	return !l.Quiet
}

// Start starts logging using the given Context.
func (l *Log) Start(ctx *Context) error {
	if l.Path != "" {
		maxSize := l.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		maxBackups := l.MaxBackups
		if maxBackups == 0 {
			maxBackups = 2
		}
		l.file = &lumberjack.Logger{
			Filename:   ctx.AbsPath(l.Path),
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		_, _ = loggo.RemoveWriter(logFileWriter)
		if err := loggo.RegisterWriter(logFileWriter, loggo.NewSimpleWriter(l.file, loggo.DefaultFormatter)); err != nil {
			return errors.Annotate(err, "registering log file writer")
		}
	}
	_, _ = loggo.RemoveWriter(loggo.DefaultWriterName)
	if !l.Quiet {
		stderr := loggo.NewSimpleWriter(ctx.Stderr, loggo.DefaultFormatter)
		if err := loggo.RegisterWriter(loggo.DefaultWriterName, stderr); err != nil {
			return errors.Trace(err)
		}
	}
	config := l.Config
	if config == "" {
		config = DefaultLoggingConfig
	}
	if l.Debug {
		config = "<root>=DEBUG"
	}
	loggo.DefaultContext().ResetLoggerLevels()
	if err := loggo.ConfigureLoggers(config); err != nil {
		return errors.Annotatef(err, "logging config %q", config)
	}
	return nil
}

// Stop closes the log file, if any.
func (l *Log) Stop() {
	if l.file == nil {
		return
	}
	_, _ = loggo.RemoveWriter(logFileWriter)
	if err := l.file.Close(); err != nil {
		logger.Warningf("closing log file: %v", err)
	}
	l.file = nil
}
