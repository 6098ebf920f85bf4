// Package monitoring exposes crawl metrics, a small HTTP status server and
// the lane dashboard.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tangocommunity/crawler/internal/model"
)

// Metrics holds the crawler's Prometheus collectors on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Records        *prometheus.CounterVec
	SourceCrawls   *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
	LaneRunning    *prometheus.GaugeVec
}

// NewMetrics registers the crawler collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Records reconciled, by lane and outcome.",
			},
			[]string{"lane", "outcome"},
		),
		SourceCrawls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_source_crawls_total",
				Help: "Source crawls finished, by lane and run status.",
			},
			[]string{"lane", "status"},
		),
		SourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_source_duration_seconds",
				Help:    "Duration of one source crawl.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"lane"},
		),
		LaneRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_lane_running",
				Help: "1 while a lane is running.",
			},
			[]string{"lane"},
		),
	}
	reg.MustRegister(
		m.Records, m.SourceCrawls, m.SourceDuration, m.LaneRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCrawl records one finished source crawl.
func (m *Metrics) ObserveCrawl(res model.CrawlResult) {
	lane := string(res.Lane)
	m.SourceCrawls.WithLabelValues(lane, string(res.Status())).Inc()
	m.SourceDuration.WithLabelValues(lane).Observe(res.Duration.Seconds())
	m.Records.WithLabelValues(lane, string(model.OutcomeCreated)).Add(float64(res.Created))
	m.Records.WithLabelValues(lane, string(model.OutcomeUpdated)).Add(float64(res.Updated))
	m.Records.WithLabelValues(lane, string(model.OutcomeSkipped)).Add(float64(res.Skipped))
	m.Records.WithLabelValues(lane, "low_confidence").Add(float64(res.LowConfidence))
}

// SetLaneRunning flips the running gauge of lane.
func (m *Metrics) SetLaneRunning(lane model.Lane, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	m.LaneRunning.WithLabelValues(string(lane)).Set(v)
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
