package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// NewLogger constructs a logrus logger writing JSON to stdout at the provided level.
func NewLogger(level string) (*logrus.Logger, error) {
	return NewLoggerWithOutput(level, os.Stdout)
}

// NewLoggerWithOutput is NewLogger with an explicit destination.
func NewLoggerWithOutput(level string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetReportCaller(false)
	logger.SetLevel(logrus.InfoLevel)

	if strings.TrimSpace(level) == "" {
		return logger, nil
	}

	parsedLevel, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid log level: %s", level)
	}

	logger.SetLevel(parsedLevel)
	return logger, nil
}

// Component returns an entry tagged with the component name.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return logger.WithField("component", name)
}
