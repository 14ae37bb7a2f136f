package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	log := New("debug", "json")
	require.NotNil(t, log)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestNewTextByDefault(t *testing.T) {
	log := New("warn", "")
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	log := New("shouting", "json")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
