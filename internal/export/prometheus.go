// Package export exposes monitor samples as Prometheus metrics.
package export

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"progtop/internal/monitor"
)

// Collector publishes the most recent sample. Scrapes between samples see the
// last completed one.
type Collector struct {
	mu     sync.Mutex
	sample *monitor.Sample

	runTime  *prometheus.Desc
	runCount *prometheus.Desc
	events   *prometheus.Desc
	cpu      *prometheus.Desc
	holders  *prometheus.Desc
}

// NewCollector returns an empty collector; it reports nothing until the first
// Update.
func NewCollector() *Collector {
	labels := []string{"id", "name", "type"}
	return &Collector{
		runTime: prometheus.NewDesc("progtop_program_run_time_nanoseconds_total",
			"Cumulative run time of the BPF program.", labels, nil),
		runCount: prometheus.NewDesc("progtop_program_runs_total",
			"Cumulative invocation count of the BPF program.", labels, nil),
		events: prometheus.NewDesc("progtop_program_events_per_second",
			"Invocation rate over the last sample period.", labels, nil),
		cpu: prometheus.NewDesc("progtop_program_cpu_percent",
			"CPU share over the last sample period, normalized across CPUs.", labels, nil),
		holders: prometheus.NewDesc("progtop_program_holders",
			"Number of processes holding a reference to the BPF program.", labels, nil),
	}
}

// Update replaces the published sample.
func (c *Collector) Update(s *monitor.Sample) {
	c.mu.Lock()
	c.sample = s
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runTime
	ch <- c.runCount
	ch <- c.events
	ch <- c.cpu
	ch <- c.holders
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	s := c.sample
	c.mu.Unlock()
	if s == nil {
		return
	}

	for i := range s.Rows {
		row := &s.Rows[i]
		labels := []string{strconv.FormatUint(uint64(row.ID), 10), row.Name, row.Type}
		ch <- prometheus.MustNewConstMetric(c.runTime, prometheus.CounterValue, float64(row.RunTimeNs), labels...)
		ch <- prometheus.MustNewConstMetric(c.runCount, prometheus.CounterValue, float64(row.RunCnt), labels...)
		ch <- prometheus.MustNewConstMetric(c.events, prometheus.GaugeValue, float64(row.EventsPerSecond()), labels...)
		ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, row.CPUTimePercent(), labels...)
		ch <- prometheus.MustNewConstMetric(c.holders, prometheus.GaugeValue, float64(len(row.Holders)), labels...)
	}
}

// Serve starts the metrics endpoint in the background and returns the server
// for shutdown.
func Serve(addr string, c *Collector, log logrus.FieldLogger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return srv
}
