// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts frames seen by the filter, by classifier reason
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icom_packets_total",
			Help: "Total number of frames run through the filter",
		},
		[]string{"pipeline", "reason"},
	)

	// RewritesTotal counts frames whose folded header was merged
	RewritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icom_rewrites_total",
			Help: "Total number of frames rewritten in place",
		},
		[]string{"pipeline"},
	)

	// CaptureDropsTotal counts frames dropped between capture and filter
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icom_capture_drops_total",
			Help: "Total number of frames dropped because the pipeline channel was full",
		},
		[]string{"pipeline"},
	)

	// SinkErrorsTotal counts failed sink writes
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icom_sink_errors_total",
			Help: "Total number of sink write errors",
		},
		[]string{"sink"},
	)

	// InspectTotal counts SIP inspection outcomes of rewritten payloads
	InspectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icom_inspect_total",
			Help: "Total number of rewritten payloads handed to the SIP inspector",
		},
		[]string{"result"},
	)

	// FilterLatencySeconds measures one filter invocation
	FilterLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icom_filter_latency_seconds",
			Help:    "Latency of a single filter invocation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 16), // 100ns to ~3ms
		},
		[]string{"pipeline"},
	)
)

// Inspection results used as the InspectTotal label
const (
	InspectParsed = "parsed"
	InspectNotSIP = "not_sip"
)
