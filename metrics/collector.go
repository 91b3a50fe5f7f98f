// Package metrics exposes a refheap.Manager's running counters as
// Prometheus metrics, the way the rest of the pack instruments
// long-running services: a single prometheus.Collector implementation
// queried on demand rather than a background goroutine pushing
// updates. Collect reads the manager's Stats on the scraping goroutine
// without any locking of its own, so a scrape must not overlap other
// calls into the same manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shenjiangwei/refheap"
)

const namespace = "refheap"

// Collector adapts a *refheap.Manager's Stats snapshot into the
// Prometheus collector interface. Register it with a
// prometheus.Registry to expose the manager's counters.
type Collector struct {
	manager *refheap.Manager

	allocations *prometheus.Desc
	frees       *prometheus.Desc
	fails       *prometheus.Desc
	merges      *prometheus.Desc
	usedBlocks  *prometheus.Desc
	freeBlocks  *prometheus.Desc
	usedBytes   *prometheus.Desc
	freeBytes   *prometheus.Desc
	liveRefs    *prometheus.Desc
	collections *prometheus.Desc
	swaps       *prometheus.Desc
	bytesMoved  *prometheus.Desc
}

// NewCollector wraps m for Prometheus scraping.
func NewCollector(m *refheap.Manager) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(namespace+"_"+name, help, nil, nil)
	}
	return &Collector{
		manager:     m,
		allocations: desc("allocations_total", "Total AllocRef calls that returned a handle."),
		frees:       desc("frees_total", "Total chunks released back to the pool."),
		fails:       desc("allocation_failures_total", "Total AllocRef calls that failed with ErrOutOfMemory."),
		merges:      desc("chunk_merges_total", "Total pairs of adjacent free chunks coalesced."),
		usedBlocks:  desc("used_blocks", "Number of chunks currently in use."),
		freeBlocks:  desc("free_blocks", "Number of chunks currently free."),
		usedBytes:   desc("used_bytes", "Bytes currently occupied by used chunks, including headers."),
		freeBytes:   desc("free_bytes", "Bytes currently available in free chunks, including headers."),
		liveRefs:    desc("live_refs", "Number of handles currently referencing a live allocation."),
		collections: desc("compactions_total", "Total Compact passes run."),
		swaps:       desc("compacted_chunks_total", "Total chunks relocated across every Compact pass."),
		bytesMoved:  desc("compacted_bytes_total", "Total bytes relocated across every Compact pass."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocations
	ch <- c.frees
	ch <- c.fails
	ch <- c.merges
	ch <- c.usedBlocks
	ch <- c.freeBlocks
	ch <- c.usedBytes
	ch <- c.freeBytes
	ch <- c.liveRefs
	ch <- c.collections
	ch <- c.swaps
	ch <- c.bytesMoved
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.manager.Stats()

	ch <- prometheus.MustNewConstMetric(c.allocations, prometheus.CounterValue, float64(s.Allocations))
	ch <- prometheus.MustNewConstMetric(c.frees, prometheus.CounterValue, float64(s.Frees))
	ch <- prometheus.MustNewConstMetric(c.fails, prometheus.CounterValue, float64(s.Fails))
	ch <- prometheus.MustNewConstMetric(c.merges, prometheus.CounterValue, float64(s.Merges))
	ch <- prometheus.MustNewConstMetric(c.usedBlocks, prometheus.GaugeValue, float64(s.UsedBlocks))
	ch <- prometheus.MustNewConstMetric(c.freeBlocks, prometheus.GaugeValue, float64(s.FreeBlocks))
	ch <- prometheus.MustNewConstMetric(c.usedBytes, prometheus.GaugeValue, float64(s.UsedMem))
	ch <- prometheus.MustNewConstMetric(c.freeBytes, prometheus.GaugeValue, float64(s.FreeMem))
	ch <- prometheus.MustNewConstMetric(c.liveRefs, prometheus.GaugeValue, float64(s.LiveRefs))
	ch <- prometheus.MustNewConstMetric(c.collections, prometheus.CounterValue, float64(s.Collections))
	ch <- prometheus.MustNewConstMetric(c.swaps, prometheus.CounterValue, float64(s.Swaps))
	ch <- prometheus.MustNewConstMetric(c.bytesMoved, prometheus.CounterValue, float64(s.BytesMoved))
}
