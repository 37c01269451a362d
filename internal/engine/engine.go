// Package engine runs the prediction pipeline: validate the feature set,
// select a model (or an ensemble), run inference, score the raw output and
// derive treatment settings from the score.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/optimizer"

	"github.com/rs/zerolog/log"
)

// Request is one prediction request.
type Request struct {
	Features    ml.FeatureSet      `json:"features"`
	Model       string             `json:"model_type,omitempty"`
	UseEnsemble bool               `json:"use_ensemble,omitempty"`
	Sensors     map[string]float64 `json:"sensor_data,omitempty"`
	Target      string             `json:"target_quality,omitempty"`
}

// Response combines the scored prediction with treatment settings.
type Response struct {
	Prediction   ml.PredictionResult `json:"prediction"`
	Optimization optimizer.Result    `json:"optimization"`
	Mode         string              `json:"mode"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Selection is the introspection view of how a request would resolve.
type Selection struct {
	Mode       string         `json:"mode"`
	Selected   []string       `json:"selected"`
	Candidates []ml.Candidate `json:"candidates"`
	Threshold  float64        `json:"overlap_threshold"`
}

// Engine wires the registry, selector, scorer and optimizer together.
type Engine struct {
	registry      *ml.Registry
	selector      *ml.Selector
	scorer        *ml.Scorer
	defaultTarget optimizer.Tier

	mu      sync.RWMutex
	metrics MetricsInterface
	now     func() time.Time
}

// New creates an engine over r. defaultTarget applies when a request names
// no target quality.
func New(r *ml.Registry, defaultTarget optimizer.Tier) *Engine {
	if defaultTarget == "" {
		defaultTarget = optimizer.TierEnvironmental
	}
	return &Engine{
		registry:      r,
		selector:      ml.NewSelector(r),
		scorer:        ml.NewScorer(),
		defaultTarget: defaultTarget,
		metrics:       noopMetrics{},
		now:           time.Now,
	}
}

// SetMetrics sets the metrics sink. A nil sink disables reporting.
func (e *Engine) SetMetrics(m MetricsInterface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m == nil {
		m = noopMetrics{}
	}
	e.metrics = m
	m.RegisteredModelsSet(e.registry.Len())
}

func (e *Engine) m() MetricsInterface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metrics
}

// Registry returns the underlying registry.
func (e *Engine) Registry() *ml.Registry {
	return e.registry
}

// Register adds a model to the registry.
func (e *Engine) Register(h *ml.ModelHandle) error {
	if err := e.registry.Register(h); err != nil {
		return err
	}
	e.m().RegisteredModelsSet(e.registry.Len())
	return nil
}

// Rollback reactivates the previous version of a family.
func (e *Engine) Rollback(family string) (*ml.ModelHandle, error) {
	return e.registry.Rollback(family)
}

// Models lists the active models.
func (e *Engine) Models() []*ml.ModelHandle {
	return e.registry.ListActive()
}

// Select reports which models a request would use without running them.
func (e *Engine) Select(features ml.FeatureSet, requested string, useEnsemble bool) (Selection, error) {
	if err := features.Validate(); err != nil {
		return Selection{}, err
	}
	mode := ml.ParseSelectionMode(requested, useEnsemble)
	sel := Selection{
		Mode:       mode.String(),
		Candidates: e.selector.Candidates(features),
		Threshold:  e.registry.OverlapThreshold(),
	}
	handles, err := e.selector.Resolve(features, mode)
	if err != nil {
		return sel, err
	}
	for _, h := range handles {
		sel.Selected = append(sel.Selected, h.ID)
	}
	return sel, nil
}

// Predict runs the full pipeline for req.
func (e *Engine) Predict(ctx context.Context, req Request) (*Response, error) {
	metrics := e.m()
	start := e.now()

	if err := ctx.Err(); err != nil {
		metrics.PredictionFailuresInc(ReasonCanceled)
		return nil, err
	}
	if err := req.Features.Validate(); err != nil {
		metrics.PredictionFailuresInc(ReasonValidation)
		return nil, err
	}

	mode := ml.ParseSelectionMode(req.Model, req.UseEnsemble)
	handles, err := e.selector.Resolve(req.Features, mode)
	if err != nil {
		metrics.PredictionFailuresInc(failureReason(err))
		return nil, err
	}

	var pred ml.PredictionResult
	if _, ok := mode.(ml.Ensemble); ok {
		pred, err = e.predictEnsemble(ctx, handles, req.Features)
	} else {
		pred, err = e.predictOne(ctx, handles[0], req.Features)
	}
	if err != nil {
		metrics.PredictionFailuresInc(failureReason(err))
		log.Error().Err(err).Str("mode", mode.String()).Msg("Prediction failed")
		return nil, err
	}

	target := optimizer.Tier(req.Target)
	if req.Target == "" {
		target = e.defaultTarget
	}
	sensors := req.Sensors
	if len(sensors) == 0 {
		sensors = req.Features
	}
	opt := optimizer.Optimize(optimizer.Input{
		QualityScore:       pred.QualityScore,
		ContaminationIndex: pred.ContaminationIndex,
		Sensors:            sensors,
		Target:             target,
	})

	metrics.PredictionsInc(pred.ModelID)
	metrics.QualityScoreObserve(pred.QualityScore)
	metrics.ScoringWarningsAdd(len(pred.Warnings))
	metrics.ReuseDecisionInc(string(opt.FinalReuse.ReuseType))
	metrics.PredictionLatencyObserve(e.now().Sub(start).Seconds())

	log.Debug().
		Str("model", pred.ModelID).
		Float64("quality_score", pred.QualityScore).
		Str("reuse", string(opt.FinalReuse.ReuseType)).
		Int("warnings", len(pred.Warnings)+len(opt.Warnings)).
		Msg("Prediction complete")

	return &Response{
		Prediction:   pred,
		Optimization: opt,
		Mode:         mode.String(),
		Timestamp:    e.now().UTC(),
	}, nil
}

type inference struct {
	handle   *ml.ModelHandle
	out      ml.RawOutput
	score    ml.Score
	warnings []string
}

func (e *Engine) infer(ctx context.Context, h *ml.ModelHandle, features ml.FeatureSet) (inference, error) {
	x, warnings := features.Vectorize(h)
	start := e.now()
	out, err := h.Predictor.PredictRaw(ctx, x)
	e.m().InferenceLatencyObserve(e.now().Sub(start).Seconds())
	if err != nil {
		return inference{}, fmt.Errorf("model %s: inference: %w", h.ID, err)
	}
	sc := e.scorer.Score(h, out)
	return inference{
		handle:   h,
		out:      out,
		score:    sc,
		warnings: append(warnings, sc.Warnings...),
	}, nil
}

func (e *Engine) predictOne(ctx context.Context, h *ml.ModelHandle, features ml.FeatureSet) (ml.PredictionResult, error) {
	inf, err := e.infer(ctx, h, features)
	if err != nil {
		return ml.PredictionResult{}, err
	}
	return ml.PredictionResult{
		ModelID:            h.ID,
		Version:            h.Version,
		Kind:               h.Kind,
		RawValue:           inf.out.Value,
		Label:              inf.out.Label,
		Probabilities:      inf.out.Probabilities,
		Confidence:         inf.score.Confidence,
		QualityScore:       inf.score.QualityScore,
		ContaminationIndex: inf.score.ContaminationIndex,
		FeaturesUsed:       append([]string(nil), h.FeatureColumns...),
		Warnings:           inf.warnings,
	}, nil
}

// predictEnsemble runs every handle. Failing members are skipped with a
// warning; if none succeed the last error is returned.
func (e *Engine) predictEnsemble(ctx context.Context, handles []*ml.ModelHandle, features ml.FeatureSet) (ml.PredictionResult, error) {
	var (
		scores   []ml.Score
		members  []ml.MemberPrediction
		warnings []string
		lastErr  error
	)
	used := map[string]struct{}{}
	var featuresUsed []string

	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return ml.PredictionResult{}, err
		}
		inf, err := e.infer(ctx, h, features)
		if err != nil {
			lastErr = err
			warnings = append(warnings, fmt.Sprintf("ensemble member %s skipped: %v", h.ID, err))
			log.Warn().Err(err).Str("model", h.ID).Msg("Ensemble member failed")
			continue
		}
		scores = append(scores, ml.Score{
			QualityScore:       inf.score.QualityScore,
			ContaminationIndex: inf.score.ContaminationIndex,
			Confidence:         inf.score.Confidence,
		})
		warnings = append(warnings, inf.warnings...)
		members = append(members, ml.MemberPrediction{
			ModelID:      h.ID,
			Version:      h.Version,
			RawValue:     inf.out.Value,
			Label:        inf.out.Label,
			Confidence:   inf.score.Confidence,
			QualityScore: inf.score.QualityScore,
		})
		for _, c := range h.FeatureColumns {
			if _, ok := used[c]; !ok {
				used[c] = struct{}{}
				featuresUsed = append(featuresUsed, c)
			}
		}
	}
	if len(members) == 0 {
		return ml.PredictionResult{}, lastErr
	}

	// Member outputs do not share a unit, so the ensemble reports no raw
	// value of its own; each member keeps its RawValue.
	combined := e.scorer.Combine(scores)
	return ml.PredictionResult{
		ModelID:            ml.EnsembleModelID,
		Confidence:         combined.Confidence,
		QualityScore:       combined.QualityScore,
		ContaminationIndex: combined.ContaminationIndex,
		FeaturesUsed:       featuresUsed,
		Members:            members,
		Warnings:           warnings,
	}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ml.ErrInvalidFeatureValue):
		return ReasonValidation
	case errors.Is(err, ml.ErrModelNotFound):
		return ReasonNotFound
	case errors.Is(err, ml.ErrNoCandidateModel):
		return ReasonNoCandidate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonInference
	}
}
