package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	logger := Initialize("debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	// Unknown levels fall back to info
	logger = Initialize("chatty")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestSetupFileLogging(t *testing.T) {
	logger := Initialize("info")

	// Empty path is a no-op
	require.NoError(t, SetupFileLogging(logger, ""))

	path := filepath.Join(t.TempDir(), "logs", "service.log")
	require.NoError(t, SetupFileLogging(logger, path))

	logger.Info("file logging test entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file logging test entry")
	assert.Contains(t, string(data), `"timestamp"`)
}
