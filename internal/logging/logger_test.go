package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adc-ontology-enricher/internal/domain"
)

func TestNew_Defaults(t *testing.T) {
	logger, closer, err := New(domain.LoggingConfig{Level: "bogus"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestNew_TextToFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "logging-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "run.log")

	logger, closer, err := New(domain.LoggingConfig{Level: "debug", Format: "text", Output: path})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestStage(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(domain.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	logger.SetOutput(&buf)

	t.Run("Success", func(t *testing.T) {
		buf.Reset()
		StartStage(logger, "run-1", "merge", logrus.Fields{"records": 3}).End(nil)

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "Stage completed", line["message"])
		assert.Equal(t, "merge", line["stage"])
		assert.Equal(t, "run-1", line["run_id"])
		assert.Equal(t, float64(3), line["records"])
	})

	t.Run("Failure", func(t *testing.T) {
		buf.Reset()
		StartStage(logger, "run-1", "write", nil).End(errors.New("disk full"))

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "error", line["level"])
		assert.Equal(t, "disk full", line["error"])
	})
}
