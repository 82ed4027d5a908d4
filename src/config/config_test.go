package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := NewDefaultConfig()
	assert.Equal(t, DefaultHubAddr, c.HubAddr)
	assert.Equal(t, []string{DefaultBindAddr}, c.BindAddrs)
	assert.Equal(t, DefaultTCPTimeout, c.TCPTimeout)
	assert.Equal(t, uint32(8<<20), c.MaxFrame)
	assert.False(t, c.Store)
}

func TestSetDataDir(t *testing.T) {
	c := NewDefaultConfig()
	c.SetDataDir("/tmp/dp")
	assert.Equal(t, filepath.Join("/tmp/dp", DefaultBadgerFile), c.DatabaseDir)
	assert.Equal(t, filepath.Join("/tmp/dp", DefaultBadgerFile, "127.0.0.1_5004"), c.NodeDatabaseDir("127.0.0.1:5004"))

	c.DatabaseDir = "/elsewhere"
	c.SetDataDir("/tmp/other")
	assert.Equal(t, "/elsewhere", c.DatabaseDir)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, LogLevel("warn"))
	assert.Equal(t, logrus.DebugLevel, LogLevel("nonsense"))
}

func TestLogFile(t *testing.T) {
	c := NewDefaultConfig()
	c.LogLevel = "info"
	c.LogFile = filepath.Join(t.TempDir(), "dpalgo.log")

	c.Logger().WithField("answer", 42).Info("hello")

	data, err := os.ReadFile(c.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "answer=42")
}

func TestMetricsDefaultsToInmem(t *testing.T) {
	c := NewDefaultConfig()
	_, ok := c.Metrics().(*metrics.InmemSink)
	assert.True(t, ok)
	assert.Same(t, c.Metrics(), c.Metrics())
}
