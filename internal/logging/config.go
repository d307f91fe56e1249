// Package logging configures the structured logger shared by the server,
// the dispatcher and the provider adapters.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// LogConfig holds the logging settings resolved from flags and config.
type LogConfig struct {
	LogLevel  string // logrus level name; empty means info
	LogFormat string // "text" or "json"
	Output    io.Writer
}

// ConfigureLogger applies level, formatter and token redaction to logger.
func ConfigureLogger(logger *logrus.Logger, config *LogConfig) error {
	if config == nil {
		return nil
	}

	level := logrus.InfoLevel
	if config.LogLevel != "" {
		parsed, err := logrus.ParseLevel(config.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
		}
		level = parsed
	}
	logger.SetLevel(level)
	logger.AddHook(NewRedactionHook())

	switch config.LogFormat {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: StandardFields.Timestamp,
				logrus.FieldKeyMsg:  "message",
			},
		})
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", config.LogFormat)
	}

	if config.Output != nil {
		logger.SetOutput(config.Output)
	}
	return nil
}

// NewLogger returns a logger configured from config.
func NewLogger(config *LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	if err := ConfigureLogger(logger, config); err != nil {
		return nil, err
	}
	return logger, nil
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(logger logrus.FieldLogger, component string) *logrus.Entry {
	return logger.WithField(StandardFields.Component, component)
}
