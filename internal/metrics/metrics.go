// Package metrics exposes a mallocator handle tree's per-node
// allocation counters as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arborist-systems/mallocator/internal/mallocator"
)

// Exporter implements prometheus.Collector over one handle tree,
// walking it fresh on every Collect so counts always reflect the
// tree's current shape, not a snapshot taken at registration time.
type Exporter struct {
	root *mallocator.Handle

	blocksAllocated *prometheus.Desc
	blocksFreed     *prometheus.Desc
	blocksFailed    *prometheus.Desc
	bytesAllocated  *prometheus.Desc
	bytesFreed      *prometheus.Desc
	bytesFailed     *prometheus.Desc
}

// NewExporter builds a Collector over root and everything currently, or
// later, attached beneath it.
func NewExporter(root *mallocator.Handle) *Exporter {
	labels := []string{"handle"}
	return &Exporter{
		root: root,
		blocksAllocated: prometheus.NewDesc("mallocator_blocks_allocated_total",
			"Blocks successfully allocated through this handle.", labels, nil),
		blocksFreed: prometheus.NewDesc("mallocator_blocks_freed_total",
			"Blocks freed through this handle.", labels, nil),
		blocksFailed: prometheus.NewDesc("mallocator_blocks_failed_total",
			"Allocation-returning calls through this handle that failed.", labels, nil),
		bytesAllocated: prometheus.NewDesc("mallocator_bytes_allocated_total",
			"Bytes successfully allocated through this handle.", labels, nil),
		bytesFreed: prometheus.NewDesc("mallocator_bytes_freed_total",
			"Bytes freed through this handle.", labels, nil),
		bytesFailed: prometheus.NewDesc("mallocator_bytes_failed_total",
			"Bytes requested by failed allocation-returning calls through this handle.", labels, nil),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.blocksAllocated
	ch <- e.blocksFreed
	ch <- e.blocksFailed
	ch <- e.bytesAllocated
	ch <- e.bytesFreed
	ch <- e.bytesFailed
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	mallocator.Walk(e.root, func(h *mallocator.Handle) {
		s := h.Stats()
		name := h.FullName()
		ch <- prometheus.MustNewConstMetric(e.blocksAllocated, prometheus.CounterValue, float64(s.BlocksAllocated), name)
		ch <- prometheus.MustNewConstMetric(e.blocksFreed, prometheus.CounterValue, float64(s.BlocksFreed), name)
		ch <- prometheus.MustNewConstMetric(e.blocksFailed, prometheus.CounterValue, float64(s.BlocksFailed), name)
		ch <- prometheus.MustNewConstMetric(e.bytesAllocated, prometheus.CounterValue, float64(s.BytesAllocated), name)
		ch <- prometheus.MustNewConstMetric(e.bytesFreed, prometheus.CounterValue, float64(s.BytesFreed), name)
		ch <- prometheus.MustNewConstMetric(e.bytesFailed, prometheus.CounterValue, float64(s.BytesFailed), name)
	})
}
