// Package metrics collects Prometheus metrics for the admission pipeline and
// exposes them for scraping on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stardylog"

// Collector implements auth.Recorder and service.ProvisionRecorder.
type Collector struct {
	admissions    *prometheus.CounterVec
	verifyLatency *prometheus.HistogramVec
	provisioning  *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to stay isolated.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Requests seen by the admission filter, by outcome.",
		}, []string{"outcome"}),
		verifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_verification_seconds",
			Help:      "Time spent verifying bearer tokens.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_reconciliations_total",
			Help:      "User reconciliations on admission, by outcome.",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(c.admissions, c.verifyLatency, c.provisioning, c.httpStatus)
	return c
}

func (c *Collector) ObserveAdmission(outcome string) {
	c.admissions.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveVerification(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.verifyLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveProvisioning(outcome string) {
	c.provisioning.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler serves the metrics in reg for Prometheus to scrape.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
