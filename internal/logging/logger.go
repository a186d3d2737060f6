package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields represents structured logging fields
type Fields = logrus.Fields

// ParseLevel maps a config/env level name to a logrus level, defaulting to info.
func ParseLevel(name string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger creates a logger writing to stderr. LOG_FORMAT=json switches to
// the JSON formatter.
func NewLogger(level string) *logrus.Logger {
	return newLogger(os.Stderr, level, os.Getenv("LOG_FORMAT") == "json")
}

func newLogger(w io.Writer, level string, json bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetLevel(ParseLevel(level))
	return logger
}
