package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks what viewers look at and how the API performs.
type Metrics struct {
	reg prometheus.Gatherer

	DocumentViews   *prometheus.CounterVec
	ActorViews      *prometheus.CounterVec
	CredentialsMade prometheus.Counter
	ScenarioReloads *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers all metrics on reg. A nil reg gets a fresh registry with
// the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		DocumentViews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ktdde_document_views_total",
			Help: "Documents served, by document key",
		}, []string{"doc"}),
		ActorViews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ktdde_actor_views_total",
			Help: "Actor document lists served, by actor",
		}, []string{"actor"}),
		CredentialsMade: f.NewCounter(prometheus.CounterOpts{
			Name: "ktdde_credentials_issued_total",
			Help: "Verifiable credential envelopes produced",
		}),
		ScenarioReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ktdde_scenario_reloads_total",
			Help: "Scenario file reloads, by result",
		}, []string{"result"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ktdde_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementDocumentView(doc string) { m.DocumentViews.WithLabelValues(doc).Inc() }

func (m *Metrics) IncrementActorView(actor string) { m.ActorViews.WithLabelValues(actor).Inc() }

func (m *Metrics) IncrementCredential() { m.CredentialsMade.Inc() }

// ObserveReload records the outcome of a scenario reload.
func (m *Metrics) ObserveReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ScenarioReloads.WithLabelValues(result).Inc()
}

// ObserveRequest records a request that started at start.
func (m *Metrics) ObserveRequest(method, route, status string, start time.Time) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
