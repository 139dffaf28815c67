// Package stats provides atomic counters for gateway request metrics.
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds atomic counters for gateway request metrics.
type Stats struct {
	Calls     atomic.Int64
	Faults    atomic.Int64
	Rejected  atomic.Int64
	Refreshes atomic.Int64
}

// New returns a zero-valued Stats ready for use.
func New() *Stats {
	return &Stats{}
}

// Snapshot is a plain-struct copy of all counters at a point in time.
type Snapshot struct {
	Calls     int64
	Faults    int64
	Rejected  int64
	Refreshes int64
}

// Snapshot reads all counters atomically and returns a plain copy.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Calls:     s.Calls.Load(),
		Faults:    s.Faults.Load(),
		Rejected:  s.Rejected.Load(),
		Refreshes: s.Refreshes.Load(),
	}
}

type collector struct {
	st *Stats

	calls     *prometheus.Desc
	faults    *prometheus.Desc
	rejected  *prometheus.Desc
	refreshes *prometheus.Desc
}

// NewCollector exposes the counters of st as prometheus counters under namespace.
func NewCollector(namespace string, st *Stats) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}

	return &collector{
		st:        st,
		calls:     desc("rpc_calls_total", "XML-RPC calls dispatched"),
		faults:    desc("rpc_faults_total", "XML-RPC calls answered with a fault"),
		rejected:  desc("auth_rejected_total", "Requests rejected by authentication"),
		refreshes: desc("refreshes_total", "Snapshot refreshes performed"),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.faults
	ch <- c.rejected
	ch <- c.refreshes
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.st.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(snap.Calls))
	ch <- prometheus.MustNewConstMetric(c.faults, prometheus.CounterValue, float64(snap.Faults))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(snap.Rejected))
	ch <- prometheus.MustNewConstMetric(c.refreshes, prometheus.CounterValue, float64(snap.Refreshes))
}
