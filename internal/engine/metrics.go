package engine

// MetricsInterface defines the metrics the engine reports.
type MetricsInterface interface {
	PredictionsInc(model string)
	PredictionFailuresInc(reason string)
	PredictionLatencyObserve(seconds float64)
	InferenceLatencyObserve(seconds float64)
	QualityScoreObserve(score float64)
	ScoringWarningsAdd(n int)
	ReuseDecisionInc(tier string)
	RegisteredModelsSet(n int)
}

// Failure reasons reported through PredictionFailuresInc.
const (
	ReasonValidation  = "validation"
	ReasonNotFound    = "model_not_found"
	ReasonNoCandidate = "no_candidate"
	ReasonInference   = "inference"
	ReasonCanceled    = "canceled"
)

type noopMetrics struct{}

func (noopMetrics) PredictionsInc(string)            {}
func (noopMetrics) PredictionFailuresInc(string)     {}
func (noopMetrics) PredictionLatencyObserve(float64) {}
func (noopMetrics) InferenceLatencyObserve(float64)  {}
func (noopMetrics) QualityScoreObserve(float64)      {}
func (noopMetrics) ScoringWarningsAdd(int)           {}
func (noopMetrics) ReuseDecisionInc(string)          {}
func (noopMetrics) RegisteredModelsSet(int)          {}
