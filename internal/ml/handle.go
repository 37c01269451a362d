package ml

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the output kind of a model.
type Kind string

const (
	KindClassifier Kind = "classifier"
	KindRegressor  Kind = "regressor"
)

// ParseKind accepts the kind names used by training metadata.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classifier", "classification":
		return KindClassifier, nil
	case "regressor", "regression":
		return KindRegressor, nil
	default:
		return "", fmt.Errorf("unknown model kind %q", s)
	}
}

// Scale tells the scorer how to read a regressor's target.
type Scale string

const (
	// ScaleEfficiency targets are already a 0-100 treatment efficiency/quality proxy.
	ScaleEfficiency Scale = "efficiency"
	// ScaleBOD targets are biochemical oxygen demand in mg/L (lower is cleaner).
	ScaleBOD Scale = "bod"
	// ScaleGeneric targets have no known range and are normalized against 200.
	ScaleGeneric Scale = "generic"
)

// ModelMetrics holds validation metrics reported by training.
type ModelMetrics struct {
	Accuracy float64 `json:"accuracy,omitempty" yaml:"accuracy"`
	F1Score  float64 `json:"f1_score,omitempty" yaml:"f1_score"`
	R2Score  float64 `json:"r2_score,omitempty" yaml:"r2_score"`
	MAE      float64 `json:"mae,omitempty" yaml:"mae"`
}

// ModelHandle describes one trained model version.
type ModelHandle struct {
	ID              string             `json:"id"`
	Kind            Kind               `json:"kind"`
	FeatureColumns  []string           `json:"feature_columns"`
	TargetColumn    string             `json:"target_column"`
	Version         string             `json:"version"`
	Metrics         ModelMetrics       `json:"metrics"`
	Active          bool               `json:"active"`
	Scale           Scale              `json:"scale,omitempty"`
	FeatureDefaults map[string]float64 `json:"feature_defaults,omitempty"`
	RegisteredAt    time.Time          `json:"registered_at"`

	Predictor Predictor `json:"-"`
}

// Score is the metric used to rank handles with equal feature overlap:
// accuracy for classifiers, R² for regressors.
func (h *ModelHandle) Score() float64 {
	if h.Kind == KindClassifier {
		return h.Metrics.Accuracy
	}
	return h.Metrics.R2Score
}

// ResolvedScale returns the declared scale or infers it from the target column.
func (h *ModelHandle) ResolvedScale() Scale {
	if h.Scale != "" {
		return h.Scale
	}
	target := strings.ToLower(h.TargetColumn)
	switch {
	case strings.Contains(target, "bod"):
		return ScaleBOD
	case strings.Contains(target, "efficiency"),
		strings.Contains(target, "quality"),
		strings.Contains(target, "removal"),
		strings.Contains(target, "score"):
		return ScaleEfficiency
	default:
		return ScaleGeneric
	}
}

// Validate checks the fields the registry relies on.
func (h *ModelHandle) Validate() error {
	if h == nil {
		return fmt.Errorf("model handle is nil")
	}
	if strings.TrimSpace(h.ID) == "" {
		return fmt.Errorf("model handle has empty family id")
	}
	if h.Kind != KindClassifier && h.Kind != KindRegressor {
		return fmt.Errorf("model %s: invalid kind %q", h.ID, h.Kind)
	}
	if len(h.FeatureColumns) == 0 {
		return fmt.Errorf("model %s: no feature columns", h.ID)
	}
	seen := make(map[string]struct{}, len(h.FeatureColumns))
	for _, c := range h.FeatureColumns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("model %s: duplicate feature column %q", h.ID, c)
		}
		seen[c] = struct{}{}
	}
	switch h.Scale {
	case "", ScaleEfficiency, ScaleBOD, ScaleGeneric:
	default:
		return fmt.Errorf("model %s: invalid scale %q", h.ID, h.Scale)
	}
	if h.Predictor == nil {
		return fmt.Errorf("model %s: no predictor attached", h.ID)
	}
	return nil
}

// clone returns a copy that shares only the predictor.
func (h *ModelHandle) clone() *ModelHandle {
	c := *h
	c.FeatureColumns = append([]string(nil), h.FeatureColumns...)
	if h.FeatureDefaults != nil {
		c.FeatureDefaults = make(map[string]float64, len(h.FeatureDefaults))
		for k, v := range h.FeatureDefaults {
			c.FeatureDefaults[k] = v
		}
	}
	return &c
}
