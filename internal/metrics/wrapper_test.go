package metrics

import (
	"testing"

	"wastewater-ai/internal/engine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ engine.MetricsInterface = (*MetricsWrapper)(nil)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionsInc("dataset1")
	wrapper.PredictionsInc("dataset1")
	wrapper.PredictionsInc("ensemble")
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("dataset1")); v != 2 {
		t.Errorf("Expected 2 predictions for dataset1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("ensemble")); v != 1 {
		t.Errorf("Expected 1 ensemble prediction, got %f", v)
	}

	wrapper.PredictionFailuresInc(engine.ReasonNoCandidate)
	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues(engine.ReasonNoCandidate)); v != 1 {
		t.Errorf("Expected 1 failure, got %f", v)
	}

	wrapper.ReuseDecisionInc("irrigation")
	if v := testutil.ToFloat64(metrics.ReuseDecisions.WithLabelValues("irrigation")); v != 1 {
		t.Errorf("Expected 1 irrigation decision, got %f", v)
	}

	wrapper.ScoringWarningsAdd(3)
	wrapper.ScoringWarningsAdd(0)
	wrapper.ScoringWarningsAdd(-1)
	if v := testutil.ToFloat64(metrics.ScoringWarnings); v != 3 {
		t.Errorf("Expected 3 scoring warnings, got %f", v)
	}

	wrapper.SensorReadingsAdd(5)
	if v := testutil.ToFloat64(metrics.SensorReadings); v != 5 {
		t.Errorf("Expected 5 sensor readings, got %f", v)
	}

	wrapper.ErrorsInc()
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 1 {
		t.Errorf("Expected 1 error, got %f", v)
	}
}

func TestMetricsWrapper_Gauge(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.RegisteredModelsSet(4)
	if v := testutil.ToFloat64(metrics.RegisteredModels); v != 4 {
		t.Errorf("Expected 4 registered models, got %f", v)
	}
	wrapper.RegisteredModelsSet(3)
	if v := testutil.ToFloat64(metrics.RegisteredModels); v != 3 {
		t.Errorf("Expected 3 registered models, got %f", v)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionLatencyObserve(0.01)
	wrapper.InferenceLatencyObserve(0.002)
	wrapper.QualityScoreObserve(93)
	wrapper.QualityScoreObserve(30)

	if n := testutil.CollectAndCount(metrics.QualityScore); n != 1 {
		t.Errorf("Expected one quality_score series, got %d", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] = h.GetSampleCount()
			}
		}
	}
	if counts["quality_score"] != 2 {
		t.Errorf("Expected 2 quality_score samples, got %d", counts["quality_score"])
	}
	if counts["prediction_latency_seconds"] != 1 {
		t.Errorf("Expected 1 prediction latency sample, got %d", counts["prediction_latency_seconds"])
	}
	if counts["inference_latency_seconds"] != 1 {
		t.Errorf("Expected 1 inference latency sample, got %d", counts["inference_latency_seconds"])
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two registries must not collide on metric names.
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())
	NewWrapper(a).ErrorsInc()
	if v := testutil.ToFloat64(b.ErrorsTotal); v != 0 {
		t.Errorf("Expected isolated registry, got %f", v)
	}
}
