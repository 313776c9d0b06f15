// Package metrics holds the Prometheus counters for a SatCheck run. Each
// Collector owns its registry so the monitor endpoint and the textfile
// export see exactly one run.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	QueryOK     = "ok"
	QueryReused = "reused"
	QueryFailed = "failed"
)

// Observation outcomes.
const (
	ObsClean      = "clean"
	ObsFlagged    = "flagged"
	ObsNoDataset  = "no_dataset"
	ObsUnreadable = "unreadable"
)

// Collector is safe for concurrent use. A nil *Collector records nothing.
type Collector struct {
	reg *prometheus.Registry

	queries         *prometheus.CounterVec
	records         prometheus.Counter
	observations    *prometheus.CounterVec
	closeApproaches prometheus.Counter
	stepFailures    prometheus.Counter
	httpRequests    *prometheus.CounterVec
	runDuration     prometheus.Gauge
	lastRun         prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satcheck_spacetrack_queries_total",
				Help: "Element queries by outcome.",
			},
			[]string{"result"},
		),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satcheck_element_records_total",
			Help: "Element records loaded from datasets.",
		}),
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satcheck_observations_total",
				Help: "Observations evaluated by outcome.",
			},
			[]string{"outcome"},
		),
		closeApproaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satcheck_close_approaches_total",
			Help: "Satellites found within the separation threshold.",
		}),
		stepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satcheck_propagation_failures_total",
			Help: "Propagation steps that failed and were skipped.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satcheck_monitor_http_requests_total",
				Help: "Monitor HTTP requests.",
			},
			[]string{"path", "code"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "satcheck_run_duration_seconds",
			Help: "Wall time of the last completed run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "satcheck_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	c.reg.MustRegister(
		c.queries,
		c.records,
		c.observations,
		c.closeApproaches,
		c.stepFailures,
		c.httpRequests,
		c.runDuration,
		c.lastRun,
	)
	return c
}

func (c *Collector) Query(result string) {
	if c == nil {
		return
	}
	c.queries.WithLabelValues(result).Inc()
}

func (c *Collector) Records(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.records.Add(float64(n))
}

func (c *Collector) Observation(outcome string) {
	if c == nil {
		return
	}
	c.observations.WithLabelValues(outcome).Inc()
}

func (c *Collector) CloseApproaches(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.closeApproaches.Add(float64(n))
}

func (c *Collector) StepFailure() {
	if c == nil {
		return
	}
	c.stepFailures.Inc()
}

// RunFinished stamps the run duration and completion time.
func (c *Collector) RunFinished(d time.Duration, at time.Time) {
	if c == nil {
		return
	}
	c.runDuration.Set(d.Seconds())
	c.lastRun.Set(float64(at.Unix()))
}

// Registry exposes the underlying registry for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node_exporter textfile
// collector. The write is atomic.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware counts requests per path and status.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		c.httpRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
	})
}
