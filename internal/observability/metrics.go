package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConversionMetrics captures pipeline outcomes.
type ConversionMetrics interface {
	ObserveConversion(target, strategy, status string, durationSeconds float64)
	IncStrategyAttempt(strategy, result string)
}

// ArtifactMetrics captures artifact lifecycle counts.
type ArtifactMetrics interface {
	SetArtifactsActive(n int)
	IncArtifactsRegistered()
	IncArtifactsEvicted(reason string)
}

// Metrics is the full set emitted by the service.
type Metrics interface {
	ConversionMetrics
	ArtifactMetrics
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) ObserveConversion(string, string, string, float64) {}
func (Noop) IncStrategyAttempt(string, string)                 {}
func (Noop) SetArtifactsActive(int)                            {}
func (Noop) IncArtifactsRegistered()                           {}
func (Noop) IncArtifactsEvicted(string)                        {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	registry            *prometheus.Registry
	conversions         *prometheus.CounterVec
	conversionDuration  *prometheus.HistogramVec
	strategyAttempts    *prometheus.CounterVec
	artifactsActive     prometheus.Gauge
	artifactsRegistered prometheus.Counter
	artifactsEvicted    *prometheus.CounterVec
}

// NewProm creates collectors under namespace and registers them on a private registry.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions by target format, winning strategy and status",
		}, []string{"target", "strategy", "status"}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "End-to-end pipeline duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"target", "status"}),
		strategyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_attempts_total",
			Help:      "Strategy attempts by strategy and result",
		}, []string{"strategy", "result"}),
		artifactsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_active",
			Help:      "Artifacts currently tracked by the store",
		}),
		artifactsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_registered_total",
			Help:      "Artifacts registered",
		}),
		artifactsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_evicted_total",
			Help:      "Artifacts evicted by reason",
		}, []string{"reason"}),
	}
	p.registry.MustRegister(
		p.conversions,
		p.conversionDuration,
		p.strategyAttempts,
		p.artifactsActive,
		p.artifactsRegistered,
		p.artifactsEvicted,
		prometheus.NewGoCollector(),
	)
	return p
}

func (p *Prom) ObserveConversion(target, strategy, status string, durationSeconds float64) {
	p.conversions.WithLabelValues(target, strategy, status).Inc()
	p.conversionDuration.WithLabelValues(target, status).Observe(durationSeconds)
}

func (p *Prom) IncStrategyAttempt(strategy, result string) {
	p.strategyAttempts.WithLabelValues(strategy, result).Inc()
}

func (p *Prom) SetArtifactsActive(n int) {
	p.artifactsActive.Set(float64(n))
}

func (p *Prom) IncArtifactsRegistered() {
	p.artifactsRegistered.Inc()
}

func (p *Prom) IncArtifactsEvicted(reason string) {
	p.artifactsEvicted.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry for tests.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
