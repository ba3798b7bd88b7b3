package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunID(t *testing.T) {
	a := RunID()
	b := RunID()
	require.NotEmpty(t, a)
	assert.Equal(t, a, b, "run id must be stable within a process")
}

func TestNewLogger(t *testing.T) {
	logger, err := New("test")
	require.NotNil(t, logger)
	if err != nil {
		// Sandboxed environments without a writable home fall back to stderr.
		assert.Empty(t, logger.Path())
		return
	}

	assert.NotEmpty(t, logger.Path())
	logger.Infof("hello %s", "world")
	logger.Debugf("debug entry")
	logger.Warnf("warn entry")
	logger.Errorf("error entry")
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close(), "double close must be safe")
}

func TestEntryFormat(t *testing.T) {
	l := &Logger{component: "engine"}
	entry := l.entry("INFO", "message")
	assert.Contains(t, entry, "[engine]")
	assert.Contains(t, entry, "[INFO]")
	assert.Contains(t, entry, "message")
}
