package node

import (
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/mosaicnetworks/dpalgo/src/common"
	"github.com/sirupsen/logrus"
)

// DefaultQueryTimeout bounds the time a status query waits for the worker.
const DefaultQueryTimeout = 2 * time.Second

// Config contains the parameters of one node.
type Config struct {
	// Owner and Index identify the node to the hub.
	Owner string `mapstructure:"owner"`
	Index int32  `mapstructure:"index"`

	// HubAddr is the ip:port of the hub.
	HubAddr string `mapstructure:"hub"`

	QueryTimeout time.Duration `mapstructure:"query-timeout"`

	MetricSink metrics.MetricSink
	Logger     *logrus.Logger
}

// NewConfig ...
func NewConfig(owner string,
	index int32,
	hubAddr string,
	sink metrics.MetricSink,
	logger *logrus.Logger) *Config {

	return &Config{
		Owner:        owner,
		Index:        index,
		HubAddr:      hubAddr,
		QueryTimeout: DefaultQueryTimeout,
		MetricSink:   sink,
		Logger:       logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Owner:        "dpalgo",
		Index:        1,
		QueryTimeout: DefaultQueryTimeout,
		MetricSink:   &metrics.BlackholeSink{},
		Logger:       logger,
	}
}

// TestConfig returns a DefaultConfig that logs through t.
func TestConfig(t testing.TB, hubAddr string, index int32) *Config {
	config := DefaultConfig()
	config.HubAddr = hubAddr
	config.Index = index
	config.Logger = common.NewTestLogger(t, common.TestLogLevel)
	return config
}
