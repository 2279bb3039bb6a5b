// Package telemetry counts what the monitoring core does: samples in,
// samples dropped, frames drawn and skipped, streams lost.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons used as label values.
const (
	DropFirstSample = "first_sample"
	DropUntracked   = "untracked"

	EvictLifecycle = "lifecycle"
	EvictGrace     = "grace"

	SkipInFlight = "in_flight"
	SkipTimeout  = "timeout"
)

// Collector holds one registry per process so tests and the CLI never
// share global state. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	samplesIngested     prometheus.Counter
	samplesDropped      *prometheus.CounterVec
	ratesClamped        prometheus.Counter
	buffersEvicted      *prometheus.CounterVec
	framesRendered      prometheus.Counter
	framesSkipped       *prometheus.CounterVec
	renderDuration      prometheus.Histogram
	streamFailures      prometheus.Counter
	activeSubscriptions prometheus.Gauge
	completionFallbacks prometheus.Counter
}

// NewCollector registers the dockhand metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		samplesIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "dockhand_samples_ingested_total",
			Help: "Normalized samples written to ring buffers",
		}),
		samplesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dockhand_samples_dropped_total",
			Help: "Raw stats records that did not become samples",
		}, []string{"reason"}),
		ratesClamped: f.NewCounter(prometheus.CounterOpts{
			Name: "dockhand_rates_clamped_total",
			Help: "Counter deltas that went negative and were clamped to zero",
		}),
		buffersEvicted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dockhand_buffers_evicted_total",
			Help: "Ring buffers dropped",
		}, []string{"reason"}),
		framesRendered: f.NewCounter(prometheus.CounterOpts{
			Name: "dockhand_frames_rendered_total",
			Help: "Dashboard frames written to the screen",
		}),
		framesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dockhand_frames_skipped_total",
			Help: "Dashboard ticks that produced no frame",
		}, []string{"reason"}),
		renderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dockhand_render_duration_seconds",
			Help:    "Time spent in one render pass",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		streamFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dockhand_stream_failures_total",
			Help: "Engine streams that ended with an error",
		}),
		activeSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "dockhand_stream_subscriptions_active",
			Help: "Open engine stream subscriptions",
		}),
		completionFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "dockhand_completion_fallbacks_total",
			Help: "Completions served from the static vocabulary only",
		}),
	}
}

// Registry exposes the registry for scraping and tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) SampleIngested() {
	if c != nil {
		c.samplesIngested.Inc()
	}
}

func (c *Collector) SampleDropped(reason string) {
	if c != nil {
		c.samplesDropped.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) RateClamped() {
	if c != nil {
		c.ratesClamped.Inc()
	}
}

func (c *Collector) BufferEvicted(reason string) {
	if c != nil {
		c.buffersEvicted.WithLabelValues(reason).Inc()
	}
}

// FrameRendered records a completed render pass and how long it took.
func (c *Collector) FrameRendered(d time.Duration) {
	if c != nil {
		c.framesRendered.Inc()
		c.renderDuration.Observe(d.Seconds())
	}
}

func (c *Collector) FrameSkipped(reason string) {
	if c != nil {
		c.framesSkipped.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) StreamFailed() {
	if c != nil {
		c.streamFailures.Inc()
	}
}

// SubscriptionOpened and SubscriptionClosed move the active gauge.
func (c *Collector) SubscriptionOpened() {
	if c != nil {
		c.activeSubscriptions.Inc()
	}
}

func (c *Collector) SubscriptionClosed() {
	if c != nil {
		c.activeSubscriptions.Dec()
	}
}

func (c *Collector) CompletionFallback() {
	if c != nil {
		c.completionFallbacks.Inc()
	}
}
