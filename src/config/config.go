package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/mosaicnetworks/dpalgo/src/net"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// databases, one sub-directory per node.
	DefaultBadgerFile = "badger_db"

	// DefaultConfigName is the name of the optional config file in DataDir,
	// without extension (dpalgo.toml, dpalgo.yaml, dpalgo.json...).
	DefaultConfigName = "dpalgo"
)

// Default configuration values.
const (
	DefaultLogLevel    = "info"
	DefaultHubAddr     = "127.0.0.1:5000"
	DefaultBindAddr    = "127.0.0.1:5004"
	DefaultOwner       = "abc"
	DefaultServiceAddr = "127.0.0.1:8000"
	DefaultTCPTimeout  = net.DefaultTimeout
	DefaultMaxFrame    = net.DefaultMaxFrame
	DefaultQueueSize   = net.DefaultQueueSize
	DefaultStore       = false
	DefaultNoService   = false
)

// Config contains all the configuration properties of a dpalgo process.
type Config struct {
	// DataDir is the top-level directory containing dpalgo configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// HubAddr is the IP:Port of the hub that coordinates the system.
	HubAddr string `mapstructure:"hub"`

	// BindAddrs are the IP:Port addresses this process listens on. One node
	// is started per address; the i-th registers with the hub with index i+1.
	BindAddrs []string `mapstructure:"listen"`

	// Owner is the alias every node of this process registers under.
	Owner string `mapstructure:"owner"`

	// TCPTimeout is the timeout for opening an outbound connection.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// MaxFrame is the size, in bytes, of the largest frame accepted or sent.
	MaxFrame uint32 `mapstructure:"max-frame"`

	// QueueSize is the capacity of each node's inbound queue.
	QueueSize int `mapstructure:"queue-size"`

	// Store activates persistent storage of the registers.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MetricSink receives the metrics of the transports and nodes. It
	// defaults to an in-memory sink that the HTTP service exposes.
	MetricSink metrics.MetricSink `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:     DefaultDataDir(),
		LogLevel:    DefaultLogLevel,
		HubAddr:     DefaultHubAddr,
		BindAddrs:   []string{DefaultBindAddr},
		Owner:       DefaultOwner,
		TCPTimeout:  DefaultTCPTimeout,
		MaxFrame:    DefaultMaxFrame,
		QueueSize:   DefaultQueueSize,
		Store:       DefaultStore,
		DatabaseDir: DefaultDatabaseDir(),
		NoService:   DefaultNoService,
		ServiceAddr: DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.DataDir = t.TempDir()
	config.DatabaseDir = filepath.Join(config.DataDir, DefaultBadgerFile)
	config.NoService = true
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level dpalgo directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// NodeDatabaseDir returns the badger directory of the node listening on addr.
func (c *Config) NodeDatabaseDir(addr string) string {
	return filepath.Join(c.DatabaseDir, sanitize(addr))
}

// Metrics returns the configured sink, creating an in-memory one on first
// use.
func (c *Config) Metrics() metrics.MetricSink {
	if c.MetricSink == nil {
		c.MetricSink = metrics.NewInmemSink(10*time.Second, time.Minute)
	}
	return c.MetricSink
}

// Logger returns a formatted logrus Entry, with prefix set to "dpalgo".
func (c *Config) Logger() *logrus.Entry {
	return c.BaseLogger().WithField("prefix", "dpalgo")
}

// BaseLogger returns the logrus Logger behind Logger.
func (c *Config) BaseLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.PanicLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.DebugLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level dpalgo config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Dpalgo")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Dpalgo")
		} else {
			return filepath.Join(home, ".dpalgo")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

// sanitize turns an ip:port into a directory name.
func sanitize(addr string) string {
	out := []byte(addr)
	for i, c := range out {
		if c == ':' || c == '/' || c == '\\' {
			out[i] = '_'
		}
	}
	return string(out)
}
