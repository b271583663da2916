package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
	Timer   MetricType = "timer"
)

// Metric represents a telemetry metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

// Collector buffers in-process metrics and periodically writes them to the
// structured log. There is no remote export; the simulator has no network
// boundary.
type Collector struct {
	mu      sync.Mutex
	metrics []Metric
	enabled bool
	log     zerolog.Logger
	flushCh chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCollector creates a collector. A disabled collector accepts calls and
// drops everything.
func NewCollector(enabled bool, logger zerolog.Logger) *Collector {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		metrics: make([]Metric, 0),
		enabled: enabled,
		log:     logger,
		flushCh: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	if enabled {
		go c.periodicFlush()
	}

	return c
}

// RecordCounter adds to a counter metric
func (c *Collector) RecordCounter(name string, value float64, labels map[string]string) {
	c.addMetric(Metric{
		Name:      name,
		Type:      Counter,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

// RecordGauge sets a gauge metric value
func (c *Collector) RecordGauge(name string, value float64, labels map[string]string) {
	c.addMetric(Metric{
		Name:      name,
		Type:      Gauge,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

// RecordTimer records a duration measurement
func (c *Collector) RecordTimer(name string, duration time.Duration, labels map[string]string) {
	c.addMetric(Metric{
		Name:      name,
		Type:      Timer,
		Value:     float64(duration.Milliseconds()),
		Labels:    labels,
		Timestamp: time.Now(),
		Unit:      "ms",
	})
}

// addMetric adds a metric to the collection
func (c *Collector) addMetric(metric Metric) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = append(c.metrics, metric)

	// Trigger flush if the buffer is getting large
	if len(c.metrics) >= 100 {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
}

// Metrics returns a copy of the buffered metrics
func (c *Collector) Metrics() []Metric {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Metric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// Flush drains the buffer into the log
func (c *Collector) Flush() {
	c.mu.Lock()
	metrics := make([]Metric, len(c.metrics))
	copy(metrics, c.metrics)
	c.metrics = c.metrics[:0]
	c.mu.Unlock()

	if len(metrics) == 0 {
		return
	}

	c.log.Debug().Int("count", len(metrics)).Msg("flushing telemetry metrics")

	for _, metric := range metrics {
		c.log.Info().
			Str("name", metric.Name).
			Str("type", string(metric.Type)).
			Float64("value", metric.Value).
			Interface("labels", metric.Labels).
			Time("timestamp", metric.Timestamp).
			Msg("telemetry_metric")
	}
}

// periodicFlush flushes metrics every 30 seconds
func (c *Collector) periodicFlush() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Flush()
		case <-c.flushCh:
			c.Flush()
		}
	}
}

// Shutdown stops the collector and flushes whatever is buffered
func (c *Collector) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	c.Flush()
}
