package ml

import (
	"context"
	"fmt"
	"math"
)

// LinearModel is an in-process linear backend. Inputs are optionally
// standardized with Means/Scales; classifiers pass the linear term through a
// sigmoid and report [negative, positive] probabilities.
type LinearModel struct {
	Kind         Kind
	Intercept    float64
	Coefficients []float64
	Means        []float64
	Scales       []float64
	// Classes optionally names the [negative, positive] labels.
	Classes []string
}

// NewLinearModel checks dimensions and returns the model.
func NewLinearModel(kind Kind, intercept float64, coef, means, scales []float64) (*LinearModel, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("linear model has no coefficients")
	}
	if len(means) != 0 && len(means) != len(coef) {
		return nil, fmt.Errorf("linear model: %d means for %d coefficients", len(means), len(coef))
	}
	if len(scales) != 0 && len(scales) != len(coef) {
		return nil, fmt.Errorf("linear model: %d scales for %d coefficients", len(scales), len(coef))
	}
	for i, s := range scales {
		if s == 0 {
			return nil, fmt.Errorf("linear model: scale %d is zero", i)
		}
	}
	return &LinearModel{
		Kind:         kind,
		Intercept:    intercept,
		Coefficients: coef,
		Means:        means,
		Scales:       scales,
	}, nil
}

// PredictRaw evaluates the model.
func (m *LinearModel) PredictRaw(ctx context.Context, x []float64) (RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return RawOutput{}, err
	}
	if len(x) != len(m.Coefficients) {
		return RawOutput{}, fmt.Errorf("expected %d features, got %d", len(m.Coefficients), len(x))
	}

	z := m.Intercept
	for i, v := range x {
		if len(m.Means) > 0 {
			v -= m.Means[i]
		}
		if len(m.Scales) > 0 {
			v /= m.Scales[i]
		}
		z += m.Coefficients[i] * v
	}

	if m.Kind != KindClassifier {
		return RawOutput{Value: z}, nil
	}

	p := sigmoid(z)
	out := RawOutput{Probabilities: []float64{1 - p, p}}
	if p >= 0.5 {
		out.Value = 1
	}
	if len(m.Classes) == 2 {
		out.Label = m.Classes[int(out.Value)]
	}
	return out, nil
}

// sigmoid converts a score to a probability
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
