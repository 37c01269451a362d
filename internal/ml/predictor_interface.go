// Package ml provides the model side of the treatment engine: the registry of
// trained model handles, feature-overlap model selection, the per-kind quality
// scorer, and the inference backends (in-process linear models, an external
// interpreter bridge for serialized artifacts, and remote HTTP inference).
//
// Handles are immutable once registered. The registry publishes snapshots
// through an atomic pointer, so concurrent predictions never block on a
// registration.
package ml

import "context"

// Predictor is the callable attached to a ModelHandle.
// Implementations receive features already ordered by the handle's
// FeatureColumns and return the raw model output.
type Predictor interface {
	// PredictRaw runs inference for one feature vector.
	PredictRaw(ctx context.Context, x []float64) (RawOutput, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(ctx context.Context, x []float64) (RawOutput, error)

// PredictRaw calls f.
func (f PredictorFunc) PredictRaw(ctx context.Context, x []float64) (RawOutput, error) {
	return f(ctx, x)
}

// RawOutput is what a model returns before scoring.
// Classifiers set Value to the predicted class index (or Label to a class name)
// and Probabilities to the per-class probabilities. Regressors set Value only.
type RawOutput struct {
	Value         float64   `json:"value"`
	Label         string    `json:"label,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}
