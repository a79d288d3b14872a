package xlog

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Level is one of the standard logging levels accepted by config.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config configures a new logger.
type Config struct {
	Level      Level
	Format     string // "json" or "text"
	TimeFormat string
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "text", TimeFormat: time.RFC3339}
}

// New creates a configured logrus.Logger with output routed through
// OutputSplitter.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}

	logger.SetOutput(OutputSplitter{})
	return logger
}

// Fields carries a base set of structured fields (service name, run id,
// indexer kind) through every log call made from one indexer instance.
type Fields struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// With creates a Fields wrapper over logger pre-loaded with the given base
// fields. A nil logger falls back to logrus.StandardLogger().
func With(logger *logrus.Logger, base map[string]interface{}) *Fields {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	f := make(logrus.Fields, len(base))
	for k, v := range base {
		f[k] = v
	}
	return &Fields{logger: logger, fields: f}
}

// WithField returns a copy of f with one additional field.
func (f *Fields) WithField(key string, value interface{}) *Fields {
	next := make(logrus.Fields, len(f.fields)+1)
	for k, v := range f.fields {
		next[k] = v
	}
	next[key] = value
	return &Fields{logger: f.logger, fields: next}
}

func (f *Fields) Debugf(format string, args ...interface{}) { f.logger.WithFields(f.fields).Debugf(format, args...) }
func (f *Fields) Infof(format string, args ...interface{})  { f.logger.WithFields(f.fields).Infof(format, args...) }
func (f *Fields) Warnf(format string, args ...interface{})  { f.logger.WithFields(f.fields).Warnf(format, args...) }
func (f *Fields) Errorf(format string, args ...interface{}) { f.logger.WithFields(f.fields).Errorf(format, args...) }

// ServiceLogger creates a Fields wrapper pre-loaded with service/indexer
// identity, mirroring the teacher's ServiceLogger helper.
func ServiceLogger(logger *logrus.Logger, serviceName, indexerKind string) *Fields {
	return With(logger, map[string]interface{}{
		"service":      serviceName,
		"indexer_kind": indexerKind,
	})
}
