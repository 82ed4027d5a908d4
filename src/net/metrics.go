package net

import (
	"github.com/hashicorp/go-metrics"
)

var (
	MetricFramesIn       = []string{"dpalgo", "net", "frames", "in", "count"}
	MetricBytesIn        = []string{"dpalgo", "net", "frames", "in", "bytes"}
	MetricFramesInError  = []string{"dpalgo", "net", "frames", "in", "error", "count"}
	MetricFramesOut      = []string{"dpalgo", "net", "frames", "out", "count"}
	MetricBytesOut       = []string{"dpalgo", "net", "frames", "out", "bytes"}
	MetricFramesOutError = []string{"dpalgo", "net", "frames", "out", "error", "count"}
	MetricConnAccepted   = []string{"dpalgo", "net", "connection", "accepted", "count"}
)

// TelemetryLabel names a metric label.
type TelemetryLabel string

var (
	LabelError    TelemetryLabel = "error"
	LabelPeerAddr TelemetryLabel = "peer_addr"
	LabelNode     TelemetryLabel = "node"
)

// M returns a metrics.Label with the given value.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}
