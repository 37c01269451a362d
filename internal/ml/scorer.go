package ml

import (
	"fmt"
	"strings"

	"wastewater-ai/internal/rules"

	"github.com/rs/zerolog/log"
)

const (
	positiveBaseQuality = 85.0
	negativeBaseQuality = 30.0
	confidenceSpan      = 20.0
	defaultConfidence   = 0.5

	// Plausible physical range for BOD in mg/L.
	bodMin = 0.0
	bodMax = 5000.0

	genericRange = 200.0
)

// bodQuality maps BOD (mg/L) to a quality score.
var bodQuality = rules.Table{
	Name: "bod_quality",
	Breakpoints: []rules.Breakpoint{
		{Below: 200, Value: 90},
		{Below: 400, Value: 70},
		{Below: 600, Value: 50},
	},
	Default: 30,
}

// Score is the normalized outcome of one model output.
type Score struct {
	QualityScore       float64
	ContaminationIndex float64
	Confidence         float64
	Warnings           []string
}

// Scorer converts raw model outputs into quality and contamination scores.
// Conversion rules are fixed policy per model kind and target scale.
type Scorer struct{}

// NewScorer returns a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score converts out, produced by h, to a normalized score.
func (s *Scorer) Score(h *ModelHandle, out RawOutput) Score {
	var sc Score
	if h.Kind == KindClassifier {
		sc = s.scoreClassifier(h, out)
	} else {
		sc = s.scoreRegressor(h, out)
	}
	sc.ContaminationIndex = 100 - sc.QualityScore

	if len(sc.Warnings) > 0 {
		log.Warn().
			Str("model", h.ID).
			Float64("raw_value", out.Value).
			Strs("warnings", sc.Warnings).
			Msg("Model output clamped during scoring")
	}
	return sc
}

func (s *Scorer) scoreClassifier(h *ModelHandle, out RawOutput) Score {
	var sc Score

	confidence, ok := classifierConfidence(out)
	if !ok {
		confidence = defaultConfidence
		sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: classifier output has no confidence, using %.1f", h.ID, defaultConfidence))
	} else if c, moved := rules.Clamp(confidence, 0, 1); moved {
		sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: confidence %g clamped to %g", h.ID, confidence, c))
		confidence = c
	}
	sc.Confidence = confidence

	base := negativeBaseQuality
	if isPositiveClass(out) {
		base = positiveBaseQuality
	}
	q, moved := rules.Clamp(base+(confidence-0.5)*confidenceSpan, 0, 100)
	if moved {
		sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: quality score clamped to %g", h.ID, q))
	}
	sc.QualityScore = q
	return sc
}

func (s *Scorer) scoreRegressor(h *ModelHandle, out RawOutput) Score {
	sc := Score{Confidence: regressorConfidence(h)}
	raw := out.Value
	if !rules.Finite(raw) {
		sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: non-finite output %v treated as 0", h.ID, raw))
		raw = 0
	}

	switch h.ResolvedScale() {
	case ScaleEfficiency:
		q, moved := rules.Clamp(raw, 0, 100)
		if moved {
			sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: efficiency %g clamped to %g", h.ID, raw, q))
		}
		sc.QualityScore = q
	case ScaleBOD:
		bod, moved := rules.Clamp(raw, bodMin, bodMax)
		if moved {
			sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: BOD %g outside plausible range, clamped to %g", h.ID, raw, bod))
		}
		sc.QualityScore = bodQuality.Lookup(bod)
	default:
		q, moved := rules.Clamp(raw/genericRange*100, 0, 100)
		if moved {
			sc.Warnings = append(sc.Warnings, fmt.Sprintf("model %s: output %g outside generic range, quality clamped to %g", h.ID, raw, q))
		}
		sc.QualityScore = q
	}
	return sc
}

// Combine averages member scores with equal weight. Confidence is the mean
// member confidence. Member warnings are carried over.
func (s *Scorer) Combine(members []Score) Score {
	if len(members) == 0 {
		return Score{QualityScore: 0, ContaminationIndex: 100}
	}
	var q, c float64
	var warnings []string
	for _, m := range members {
		q += m.QualityScore
		c += m.Confidence
		warnings = append(warnings, m.Warnings...)
	}
	n := float64(len(members))
	quality := rules.Bound(q/n, 0, 100)
	return Score{
		QualityScore:       quality,
		ContaminationIndex: 100 - quality,
		Confidence:         c / n,
		Warnings:           warnings,
	}
}

func classifierConfidence(out RawOutput) (float64, bool) {
	if len(out.Probabilities) == 0 {
		return 0, false
	}
	best := out.Probabilities[0]
	for _, p := range out.Probabilities[1:] {
		if p > best {
			best = p
		}
	}
	if !rules.Finite(best) {
		return 0, false
	}
	return best, true
}

func regressorConfidence(h *ModelHandle) float64 {
	if h.Metrics.R2Score == 0 {
		return defaultConfidence
	}
	return rules.Bound(h.Metrics.R2Score, 0, 1)
}

// isPositiveClass reads a known label first. Labels outside the vocabulary
// (custom class names from a descriptor) defer to the class index in Value.
func isPositiveClass(out RawOutput) bool {
	switch strings.ToLower(strings.TrimSpace(out.Label)) {
	case "1", "potable", "acceptable", "true", "yes", "positive":
		return true
	case "0", "not_potable", "non_potable", "not potable", "unacceptable", "false", "no", "negative":
		return false
	}
	return out.Value >= 0.5
}
