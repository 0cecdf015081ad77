// Package observability configures logging and Prometheus metrics for the
// registry core.
package observability

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity threshold for emitted log messages.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}[l]
}

func (l LogLevel) toLogrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ConfigureLogging sets up the process-wide logrus logger with structured
// JSON output. Packages log through logrus.WithField entries, so this is
// the only place output format and level are decided.
func ConfigureLogging(level LogLevel, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	logrus.SetOutput(output)
	logrus.SetLevel(level.toLogrusLevel())
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// ParseLogLevel converts a config string into a LogLevel, defaulting to
// info for unknown values.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel
	case "warn", "WARN", "warning":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}
