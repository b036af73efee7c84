package malloc

import "github.com/prometheus/client_golang/prometheus"

// Stats is a point-in-time snapshot of heap bookkeeping, the same shape
// the teacher's ArenaMetrics exposes: total bytes committed from the OS,
// bytes currently held by used chunks, number of free chunks, and the
// number of times the heap has grown.
type Stats struct {
	CommittedBytes int     // total bytes ever delivered by growPages
	UsedBytes      int     // bytes held by chunks currently marked used
	FreeChunks     int     // chunks currently on the free list
	Growths        int     // number of times the heap has grown
	Utilization    float64 // UsedBytes / CommittedBytes, 0 if CommittedBytes == 0
}

// Stats returns a snapshot of the heap's current bookkeeping.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statsLocked()
}

func (h *Heap) statsLocked() Stats {
	free := 0
	freeBytes := uintptr(0)
	h.list.walk(func(c chunkAddr) {
		free++
		freeBytes += c.header().size()
	})

	committed := int(h.committed)
	used := 0
	if committed > 0 {
		// the two sentinel fences belong to no chunk
		used = committed - 2*fenceSize - int(freeBytes)
	}

	var util float64
	if committed > 0 {
		util = float64(used) / float64(committed)
	}

	return Stats{
		CommittedBytes: committed,
		UsedBytes:      used,
		FreeChunks:     free,
		Growths:        int(h.growths),
		Utilization:    util,
	}
}

// collector adapts Heap.Stats to prometheus.Collector. Registration is
// opt-in via WithMetricsRegisterer; by default no metric is exported.
type collector struct {
	h              *Heap
	committedDesc  *prometheus.Desc
	usedDesc       *prometheus.Desc
	freeChunksDesc *prometheus.Desc
	growthsDesc    *prometheus.Desc
}

func newCollector(h *Heap) *collector {
	return &collector{
		h:              h,
		committedDesc:  prometheus.NewDesc("malloc_heap_bytes_total", "Total bytes committed from the OS.", nil, nil),
		usedDesc:       prometheus.NewDesc("malloc_heap_bytes_used", "Bytes currently held by used chunks.", nil, nil),
		freeChunksDesc: prometheus.NewDesc("malloc_heap_free_chunks", "Number of chunks currently on the free list.", nil, nil),
		growthsDesc:    prometheus.NewDesc("malloc_heap_growths_total", "Number of times the heap has grown.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.committedDesc
	ch <- c.usedDesc
	ch <- c.freeChunksDesc
	ch <- c.growthsDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.h.Stats()
	ch <- prometheus.MustNewConstMetric(c.committedDesc, prometheus.GaugeValue, float64(s.CommittedBytes))
	ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(s.UsedBytes))
	ch <- prometheus.MustNewConstMetric(c.freeChunksDesc, prometheus.GaugeValue, float64(s.FreeChunks))
	ch <- prometheus.MustNewConstMetric(c.growthsDesc, prometheus.CounterValue, float64(s.Growths))
}
