// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const namespace = "newsingestor"

// Recorder owns a private registry so several instances can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	articlesAdded  prometheus.Counter
	itemsSkipped   *prometheus.CounterVec
	quotesAdded    prometheus.Counter
	pollsGenerated prometheus.Counter
	runDuration    prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ ports.RunMetrics = (*Recorder)(nil)

// NewRecorder registers every collector, plus Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished pipeline runs by final status.",
		}, []string{"status"}),
		articlesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_added_total",
			Help:      "Articles persisted by the pipeline.",
		}),
		itemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Raw items not persisted, by reason.",
		}, []string{"reason"}),
		quotesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_added_total",
			Help:      "Quotes mined and stored.",
		}),
		pollsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_generated_total",
			Help:      "Polls installed as the active poll.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}

	r.registry.MustRegister(
		r.runsTotal,
		r.articlesAdded,
		r.itemsSkipped,
		r.quotesAdded,
		r.pollsGenerated,
		r.runDuration,
		r.httpRequestsTotal,
		r.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) RunFinished(status domain.RunStatus, articlesAdded int, elapsed time.Duration) {
	r.runsTotal.WithLabelValues(string(status)).Inc()
	r.articlesAdded.Add(float64(articlesAdded))
	r.runDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) ItemSkipped(reason string) {
	r.itemsSkipped.WithLabelValues(reason).Inc()
}

func (r *Recorder) QuoteAdded() {
	r.quotesAdded.Inc()
}

func (r *Recorder) PollGenerated() {
	r.pollsGenerated.Inc()
}

// Middleware collects HTTP metrics for the ops server.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		r.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
