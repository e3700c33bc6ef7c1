package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/decoder"
	"firestige.xyz/icom/internal/core/filter"
	"firestige.xyz/icom/internal/metrics"
)

// Metrics contains per-pipeline counters. The atomic counters back Stats;
// the Prometheus children are resolved once so the hot path does no label
// lookups.
type Metrics struct {
	Name string

	Received      atomic.Uint64
	Matched       atomic.Uint64
	Rewritten     atomic.Uint64
	Passed        atomic.Uint64
	Dropped       atomic.Uint64
	SinkErrors    atomic.Uint64
	Inspected     atomic.Uint64
	InspectErrors atomic.Uint64

	reasons  []prometheus.Counter
	rewrites prometheus.Counter
	drops    prometheus.Counter
	latency  prometheus.Observer
}

// NewMetrics creates a new metrics instance labelled with the pipeline name.
func NewMetrics(name string) *Metrics {
	m := &Metrics{
		Name:     name,
		rewrites: metrics.RewritesTotal.WithLabelValues(name),
		drops:    metrics.CaptureDropsTotal.WithLabelValues(name),
		latency:  metrics.FilterLatencySeconds.WithLabelValues(name),
	}
	reasons := decoder.Reasons()
	m.reasons = make([]prometheus.Counter, len(reasons))
	for _, r := range reasons {
		m.reasons[r] = metrics.PacketsTotal.WithLabelValues(name, r.String())
	}
	return m
}

func (m *Metrics) observe(res filter.Result, elapsed time.Duration) {
	m.Received.Add(1)
	if int(res.Reason) < len(m.reasons) {
		m.reasons[res.Reason].Inc()
	}
	if res.Reason == decoder.ReasonMatched {
		m.Matched.Add(1)
	}
	if res.Rewritten {
		m.Rewritten.Add(1)
		m.rewrites.Inc()
	}
	if res.Verdict == core.VerdictPass {
		m.Passed.Add(1)
	}
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) dropped() {
	m.Dropped.Add(1)
	m.drops.Inc()
}

func (m *Metrics) sinkError(sinkName string) {
	m.SinkErrors.Add(1)
	metrics.SinkErrorsTotal.WithLabelValues(sinkName).Inc()
}

func (m *Metrics) inspected(err error) {
	m.Inspected.Add(1)
	if err != nil {
		m.InspectErrors.Add(1)
		metrics.InspectTotal.WithLabelValues(metrics.InspectNotSIP).Inc()
		return
	}
	metrics.InspectTotal.WithLabelValues(metrics.InspectParsed).Inc()
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Received:      m.Received.Load(),
		Matched:       m.Matched.Load(),
		Rewritten:     m.Rewritten.Load(),
		Passed:        m.Passed.Load(),
		Dropped:       m.Dropped.Load(),
		SinkErrors:    m.SinkErrors.Load(),
		Inspected:     m.Inspected.Load(),
		InspectErrors: m.InspectErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received      uint64
	Matched       uint64
	Rewritten     uint64
	Passed        uint64
	Dropped       uint64 // Pipeline channel full
	KernelDrops   uint64 // Reported by the source
	SinkErrors    uint64
	Inspected     uint64
	InspectErrors uint64
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Received:      s.Received + o.Received,
		Matched:       s.Matched + o.Matched,
		Rewritten:     s.Rewritten + o.Rewritten,
		Passed:        s.Passed + o.Passed,
		Dropped:       s.Dropped + o.Dropped,
		KernelDrops:   s.KernelDrops + o.KernelDrops,
		SinkErrors:    s.SinkErrors + o.SinkErrors,
		Inspected:     s.Inspected + o.Inspected,
		InspectErrors: s.InspectErrors + o.InspectErrors,
	}
}

// Fields renders s for structured logging.
func (s Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"received":       s.Received,
		"matched":        s.Matched,
		"rewritten":      s.Rewritten,
		"passed":         s.Passed,
		"dropped":        s.Dropped,
		"kernel_drops":   s.KernelDrops,
		"sink_errors":    s.SinkErrors,
		"inspected":      s.Inspected,
		"inspect_errors": s.InspectErrors,
	}
}
