package ml

import (
	"fmt"
	"sort"

	"wastewater-ai/internal/rules"
)

// FeatureSet maps feature names to measured values.
type FeatureSet map[string]float64

// Validate rejects NaN and infinite values.
func (f FeatureSet) Validate() error {
	for _, name := range f.Names() {
		if v := f[name]; !rules.Finite(v) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidFeatureValue, name, v)
		}
	}
	return nil
}

// Names returns the feature names in sorted order.
func (f FeatureSet) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Vectorize orders the features by the handle's columns. Missing columns are
// filled with the handle's default for that column, or 0, and each fill is
// reported as a warning.
func (f FeatureSet) Vectorize(h *ModelHandle) ([]float64, []string) {
	x := make([]float64, len(h.FeatureColumns))
	var warnings []string
	for i, col := range h.FeatureColumns {
		if v, ok := f[col]; ok {
			x[i] = v
			continue
		}
		def := h.FeatureDefaults[col]
		x[i] = def
		warnings = append(warnings, fmt.Sprintf("model %s: missing feature %q filled with default %g", h.ID, col, def))
	}
	return x, warnings
}
