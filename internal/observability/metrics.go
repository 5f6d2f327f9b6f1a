// Package observability expone métricas Prometheus del analizador.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes de un fetch al provider.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeNoData        = "no_data"
	OutcomeProviderError = "provider_error"
	OutcomeCanceled      = "canceled"
)

// Estados de un run de análisis.
const (
	RunOK      = "ok"
	RunPartial = "partial" // con filas rechazadas o trades excluidos
	RunFailed  = "failed"
)

// Metrics agrupa todas las métricas. Cada instancia tiene su propio registry,
// así los tests pueden crear varias sin colisiones. Un *Metrics nil es válido
// y no registra nada.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal   *prometheus.CounterVec
	FetchRetries   prometheus.Counter
	FetchDuration  prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	RowsRejected   prometheus.Counter
	TradesExcluded prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
}

// NewMetrics crea y registra todas las métricas bajo el namespace dado.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coeus"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetches_total",
			Help:      "Market data fetch attempts by outcome",
		}, []string{"outcome"}),
		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts retried after a transient provider error",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single fetch attempt",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_lookups_total",
			Help:      "Price cache lookups by result",
		}, []string{"result"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Analysis runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of an analysis run",
			Buckets:   prometheus.DefBuckets,
		}),
		RowsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "rows_rejected_total",
			Help:      "Input rows rejected by validation",
		}),
		TradesExcluded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "trades_excluded_total",
			Help:      "Trades excluded from valuation for lack of market data",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Registry devuelve el registry propio.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler sirve las métricas en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch registra un intento de fetch.
func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveRetry registra un reintento.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

// ObserveCache registra un lookup en la caché de precios.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveRun registra un run completo.
func (m *Metrics) ObserveRun(status string, d time.Duration, rejected, excluded int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.RowsRejected.Add(float64(rejected))
	m.TradesExcluded.Add(float64(excluded))
}

// ObserveHTTP registra una petición al API HTTP.
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
