// Package metrics provides Prometheus metrics for the treatment engine.
// It covers prediction throughput and failures, inference latency, the
// distribution of quality scores and the reuse decisions derived from them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        *prometheus.CounterVec // Successful predictions by model id
	PredictionFailures *prometheus.CounterVec // Failed predictions by reason
	PredictionLatency  prometheus.Histogram   // End-to-end Predict latency in seconds
	InferenceLatency   prometheus.Histogram   // Single backend call latency in seconds

	// Scoring and optimization metrics
	QualityScore    prometheus.Histogram   // Distribution of quality scores (0-100)
	ScoringWarnings prometheus.Counter     // Warnings raised while scoring
	ReuseDecisions  *prometheus.CounterVec // Final reuse tier decisions

	// Registry and ingestion metrics
	RegisteredModels prometheus.Gauge   // Active model handles
	SensorReadings   prometheus.Counter // Sensor readings ingested
	ErrorsTotal      prometheus.Counter // Request errors of any kind
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful predictions",
		}, []string{"model"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions",
		}, []string{"reason"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Model backend inference latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		QualityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quality_score",
			Help:    "Distribution of predicted water quality scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ScoringWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "scoring_warnings_total",
			Help: "Total number of warnings raised while scoring predictions",
		}),
		ReuseDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reuse_decisions_total",
			Help: "Total number of final reuse decisions by tier",
		}, []string{"tier"}),
		RegisteredModels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "registered_models",
			Help: "Number of active model handles",
		}),
		SensorReadings: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensor_readings_total",
			Help: "Total number of sensor readings ingested",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of request errors",
		}),
	}
}
