package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleyorama2/loadsim/internal/stress"
)

// Result label values of loadsim_loads_total.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Prometheus exposes load metrics on a private registry.
//
// Metrics:
//   - loadsim_unit_duration_seconds{unit}: stress unit run time
//   - loadsim_unit_ops_total{unit}: operations performed by each unit
//   - loadsim_loads_total{result}: finished loads
//   - loadsim_payload_bytes: payload size distribution
//   - http_requests_total{path,method,status}: requests served
//   - http_request_duration_seconds{path,method}: request latency
type Prometheus struct {
	registry *prometheus.Registry

	unitDuration *prometheus.HistogramVec
	unitOps      *prometheus.CounterVec
	loads        *prometheus.CounterVec
	payloadBytes prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them, along with the Go
// and process collectors, on a new registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadsim_unit_duration_seconds",
				Help:    "Stress unit run time in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"unit"},
		),
		unitOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "loadsim_unit_ops_total", Help: "Operations performed by stress units."},
			[]string{"unit"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "loadsim_loads_total", Help: "Finished loads by result."},
			[]string{"result"},
		),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "loadsim_payload_bytes",
			Help:    "Size of generated payloads in bytes.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by path, method and status."},
			[]string{"path", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"path", "method"},
		),
	}

	p.registry.MustRegister(
		p.unitDuration, p.unitOps, p.loads, p.payloadBytes,
		p.httpRequests, p.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// RecordReport records one stress unit run.
func (p *Prometheus) RecordReport(report stress.Report) {
	if report.Unit == "" {
		return
	}
	p.unitDuration.WithLabelValues(report.Unit).Observe(report.Duration.Seconds())
	if report.Ops > 0 {
		p.unitOps.WithLabelValues(report.Unit).Add(float64(report.Ops))
	}
}

// RecordLoad records one finished load.
func (p *Prometheus) RecordLoad(_ time.Duration, payloadBytes int64, err error) {
	if err != nil {
		p.loads.WithLabelValues(ResultFailure).Inc()
		return
	}
	p.loads.WithLabelValues(ResultSuccess).Inc()
	p.payloadBytes.Observe(float64(payloadBytes))
}

// Middleware returns a gin middleware recording request count and latency.
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		p.httpLatency.WithLabelValues(path, c.Request.Method).Observe(dur)
		p.httpRequests.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler returns the exposition handler for the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
