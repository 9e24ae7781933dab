// Package logging builds the run logger and times pipeline stages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adc-ontology-enricher/internal/domain"
)

// Log formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger from config. The returned closer releases a log
// file when output names one.
func New(config domain.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(config.Format, FormatText) {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(config.Output) {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	}

	return logger, closer, nil
}

// Stage times one step of a run.
type Stage struct {
	entry *logrus.Entry
	name  string
	start time.Time
}

// StartStage logs the start of a named step with fields.
func StartStage(logger *logrus.Logger, runID, name string, fields logrus.Fields) *Stage {
	entry := logger.WithFields(logrus.Fields{"run_id": runID, "stage": name})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Debug("Stage started")
	return &Stage{entry: entry, name: name, start: time.Now()}
}

// End logs the outcome and returns the elapsed time.
func (s *Stage) End(err error) time.Duration {
	elapsed := time.Since(s.start)
	entry := s.entry.WithField("duration_ms", elapsed.Milliseconds())
	if err != nil {
		entry.WithError(err).Error("Stage failed")
	} else {
		entry.Info("Stage completed")
	}
	return elapsed
}
