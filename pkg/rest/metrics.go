package rest

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector aggregates prometheus metrics for a Client. All methods are
// safe on a nil receiver, so a client without metrics pays a nil check per
// event and nothing else. Metrics never influence control flow.
type Collector struct {
	requests    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	retries     *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	transfers   *prometheus.CounterVec
	streamemit  prometheus.Counter
}

// NewCollector builds a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_requests_total",
			Help: "Completed requests by method and status code.",
		}, []string{"method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_request_errors_total",
			Help: "Failed request attempts by method and error kind.",
		}, []string{"method", "kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_retries_total",
			Help: "Retry attempts by method.",
		}, []string{"method"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_cache_hits_total",
			Help: "Cache lookups answered without a transport call.",
		}, []string{"method"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_cache_misses_total",
			Help: "Cache lookups that fell through to the transport.",
		}, []string{"method"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_transfers_total",
			Help: "Terminal transfer task outcomes by kind and state.",
		}, []string{"kind", "outcome"}),
		streamemit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_stream_chunks_total",
			Help: "Chunks emitted by stream decoders.",
		}),
	}

	reg.MustRegister(c.requests, c.errors, c.retries, c.cacheHits, c.cacheMisses, c.transfers, c.streamemit)
	return c
}

func (c *Collector) request(method string, status int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (c *Collector) requestError(method string, kind Kind) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(method, string(kind)).Inc()
}

func (c *Collector) retry(method string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(method).Inc()
}

func (c *Collector) cacheHit(method string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(method).Inc()
}

func (c *Collector) cacheMiss(method string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(method).Inc()
}

// Transfer records one terminal transfer outcome ("download"/"upload",
// "completed"/"failed"/"cancelled"). Exported for the transfer package.
func (c *Collector) Transfer(kind, outcome string) {
	if c == nil {
		return
	}
	c.transfers.WithLabelValues(kind, outcome).Inc()
}

// StreamChunk records one emitted stream chunk. Exported for the stream
// package.
func (c *Collector) StreamChunk() {
	if c == nil {
		return
	}
	c.streamemit.Inc()
}
