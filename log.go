package main

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate"
)

// subsystemLoggers is the set of loggers tagged onto every log line so operators
// can grep a single component out of a mixed log stream.
var subsystemLoggers = make(map[string]btclog.Logger)

var (
	backendLog = btclog.NewBackend(logWriter{})

	fddLog  = addSubLogger("FEDD")
	apiLog  = addSubLogger("API")
	cnssLog = addSubLogger("CNSS")
	dbLog   = addSubLogger("DB")
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end of a rotating log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var logRotator *logrotate.Logger

func addSubLogger(subsystem string) btclog.Logger {
	logger := backendLog.Logger(subsystem)
	subsystemLoggers[subsystem] = logger
	return logger
}

// setLogLevels sets the log level for every registered subsystem logger.
func setLogLevels(level string) {
	for _, logger := range subsystemLoggers {
		logger.SetLevel(btclog.LevelFromString(level))
	}
}

// initLogRotator opens a rotating file logger at the given path, mirroring
// the teacher's practice of keeping a bounded number of historical logs.
func initLogRotator(logFile string) {
	logRotator = logrotate.NewLogFile(logFile)
}

// logClosure defers formatting an expensive log argument until the logger
// has already decided the line will actually be emitted, the same trick the
// teacher uses around spew.Sdump calls in its wire-message trace logging.
type logClosure func() string

func (c logClosure) String() string { return c() }

func newLogClosure(c func() string) logClosure { return c }
