package metrics

/*
dnswarm — fast bulk DNS resolver and domain collector in Go
Copyright (C) 2025  Pepijn van der Stap <dnswarm@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package metrics exposes Prometheus metrics for monitoring dnswarm: resolution
outcomes and latencies, crawl activity, batch progress, and tuner trials.

Metrics are collected into a private registry and served over HTTP when
enabled; when disabled every recording helper is a cheap no-op so callers
never have to guard their instrumentation.
*/

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry          = prometheus.NewRegistry()
	defaultRegisterer = promauto.With(registry)
	metricsEnabled    bool
	metricsServer     *http.Server
)

// Metrics contains all the Prometheus metrics for the application.
type Metrics struct {
	// Resolution metrics
	ResolveDuration *prometheus.HistogramVec
	ResolvesTotal   *prometheus.CounterVec

	// Batch engine metrics
	BatchProcessed prometheus.Gauge
	BatchTotal     prometheus.Gauge

	// Crawl metrics
	CrawlPagesTotal   *prometheus.CounterVec
	CrawlDomainsFound prometheus.Counter
	CrawlFrontierSize prometheus.Gauge

	// Tuner metrics
	TunerTrialsTotal prometheus.Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, creating it on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection.
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled
}

func newMetrics() *Metrics {
	buckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	return &Metrics{
		ResolveDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dnswarm_resolve_duration_seconds",
				Help:    "Time spent on a single DNS resolution",
				Buckets: buckets,
			},
			[]string{"result"},
		),
		ResolvesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnswarm_resolves_total",
				Help: "DNS resolutions by outcome (ok, timeout, resolution_failed, unexpected)",
			},
			[]string{"result"},
		),
		BatchProcessed: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "dnswarm_batch_processed_domains",
				Help: "Domains processed so far in the current batch query run",
			},
		),
		BatchTotal: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "dnswarm_batch_total_domains",
				Help: "Total domains in the current batch query run",
			},
		),
		CrawlPagesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnswarm_crawl_pages_total",
				Help: "Crawled pages by outcome (ok, failed)",
			},
			[]string{"result"},
		),
		CrawlDomainsFound: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "dnswarm_crawl_domains_found_total",
				Help: "Unique domains discovered by the collector",
			},
		),
		CrawlFrontierSize: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "dnswarm_crawl_frontier_size",
				Help: "Domains discovered but not yet crawled",
			},
		),
		TunerTrialsTotal: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "dnswarm_tuner_trials_total",
				Help: "Completed performance tuner trials",
			},
		),
	}
}

// ObserveResolve records one resolution outcome and its latency.
func ObserveResolve(result string, latency time.Duration) {
	if !metricsEnabled {
		return
	}
	m := GetMetrics()
	m.ResolvesTotal.WithLabelValues(result).Inc()
	m.ResolveDuration.WithLabelValues(result).Observe(latency.Seconds())
}

// SetBatchProgress records current batch query progress.
func SetBatchProgress(processed, total int) {
	if !metricsEnabled {
		return
	}
	m := GetMetrics()
	m.BatchProcessed.Set(float64(processed))
	m.BatchTotal.Set(float64(total))
}

// ObserveCrawlPage records one page fetch outcome.
func ObserveCrawlPage(result string) {
	if !metricsEnabled {
		return
	}
	GetMetrics().CrawlPagesTotal.WithLabelValues(result).Inc()
}

// SetCrawlFrontier records the current crawl frontier size.
func SetCrawlFrontier(frontier int) {
	if !metricsEnabled {
		return
	}
	GetMetrics().CrawlFrontierSize.Set(float64(frontier))
}

// IncCrawlDomainsFound counts one newly discovered domain.
func IncCrawlDomainsFound() {
	if !metricsEnabled {
		return
	}
	GetMetrics().CrawlDomainsFound.Inc()
}

// IncTunerTrials counts one completed tuner trial.
func IncTunerTrials() {
	if !metricsEnabled {
		return
	}
	GetMetrics().TunerTrialsTotal.Inc()
}

// StartMetricsServer serves the registry on addr (e.g. ":9090") in the
// background. Safe to call once; errors other than server-closed are logged.
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	log.Printf("Metrics server listening on %s", addr)
	return nil
}

// StopMetricsServer shuts the metrics server down gracefully.
func StopMetricsServer(ctx context.Context) error {
	if metricsServer == nil {
		return nil
	}
	return metricsServer.Shutdown(ctx)
}
