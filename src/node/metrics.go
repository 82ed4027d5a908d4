package node

import (
	"github.com/hashicorp/go-metrics"
)

var (
	MetricDispatched = []string{"dpalgo", "node", "dispatch", "count"}
	MetricDropped    = []string{"dpalgo", "node", "dropped", "count"}
	MetricSendError  = []string{"dpalgo", "node", "send", "error", "count"}
	MetricCompleted  = []string{"dpalgo", "node", "operation", "completed", "count"}
)

// TelemetryLabel names a metric label.
type TelemetryLabel string

var (
	LabelNode   TelemetryLabel = "node"
	LabelType   TelemetryLabel = "type"
	LabelReason TelemetryLabel = "reason"
)

// M returns a metrics.Label with the given value.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (n *Node) incr(key []string, labels ...metrics.Label) {
	mLabels := make([]metrics.Label, 0, len(n.mLabels)+len(labels))
	mLabels = append(mLabels, n.mLabels...)
	mLabels = append(mLabels, labels...)
	n.msink.IncrCounterWithLabels(key, 1.0, mLabels)
}
