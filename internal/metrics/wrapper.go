package metrics

// MetricsWrapper adapts Metrics to the method set the engine and API call.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(model string) {
	w.m.Predictions.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc(reason string) {
	w.m.PredictionFailures.WithLabelValues(reason).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) InferenceLatencyObserve(seconds float64) {
	w.m.InferenceLatency.Observe(seconds)
}

func (w *MetricsWrapper) QualityScoreObserve(score float64) {
	w.m.QualityScore.Observe(score)
}

func (w *MetricsWrapper) ScoringWarningsAdd(n int) {
	if n > 0 {
		w.m.ScoringWarnings.Add(float64(n))
	}
}

func (w *MetricsWrapper) ReuseDecisionInc(tier string) {
	w.m.ReuseDecisions.WithLabelValues(tier).Inc()
}

func (w *MetricsWrapper) RegisteredModelsSet(n int) {
	w.m.RegisteredModels.Set(float64(n))
}

func (w *MetricsWrapper) SensorReadingsAdd(n int) {
	if n > 0 {
		w.m.SensorReadings.Add(float64(n))
	}
}

func (w *MetricsWrapper) ErrorsInc() {
	w.m.ErrorsTotal.Inc()
}
