package ml

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// AutoModel is the sentinel id that requests auto-selection.
const AutoModel = "auto"

// SelectionMode is one of Explicit, Auto or Ensemble.
type SelectionMode interface {
	selectionMode()
	String() string
}

// Explicit selects one family by id.
type Explicit struct{ ID string }

// Auto selects the best-overlapping active model.
type Auto struct{}

// Ensemble uses every overlapping active model.
type Ensemble struct{}

func (Explicit) selectionMode() {}
func (Auto) selectionMode()     {}
func (Ensemble) selectionMode() {}

func (e Explicit) String() string { return "explicit:" + e.ID }
func (Auto) String() string       { return AutoModel }
func (Ensemble) String() string   { return "ensemble" }

// ParseSelectionMode maps request fields to a mode. Ensemble wins over a model
// id; an empty id or "auto" means Auto.
func ParseSelectionMode(requested string, useEnsemble bool) SelectionMode {
	if useEnsemble {
		return Ensemble{}
	}
	id := strings.TrimSpace(requested)
	if id == "" || strings.EqualFold(id, AutoModel) {
		return Auto{}
	}
	return Explicit{ID: id}
}

// Selector resolves a selection mode against a registry.
type Selector struct {
	registry *Registry
}

// NewSelector creates a selector over r.
func NewSelector(r *Registry) *Selector {
	return &Selector{registry: r}
}

// Select returns the single handle for an Explicit or Auto mode.
func (s *Selector) Select(features FeatureSet, mode SelectionMode) (*ModelHandle, error) {
	switch m := mode.(type) {
	case Explicit:
		return s.registry.Get(m.ID)
	case Auto:
		candidates, err := s.candidates(features)
		if err != nil {
			return nil, err
		}
		best := candidates[0]
		log.Debug().
			Str("model", best.Handle.ID).
			Float64("overlap_ratio", best.OverlapRatio).
			Int("candidates", len(candidates)).
			Msg("Auto-selected model")
		return best.Handle, nil
	case Ensemble:
		return nil, fmt.Errorf("ensemble mode yields several models, use SelectEnsemble")
	default:
		return nil, fmt.Errorf("unsupported selection mode %T", mode)
	}
}

// SelectEnsemble returns every candidate handle, best first.
func (s *Selector) SelectEnsemble(features FeatureSet) ([]*ModelHandle, error) {
	candidates, err := s.candidates(features)
	if err != nil {
		return nil, err
	}
	out := make([]*ModelHandle, len(candidates))
	for i, c := range candidates {
		out[i] = c.Handle
	}
	return out, nil
}

// Resolve returns the handles a mode evaluates to: one for Explicit and Auto,
// all candidates for Ensemble.
func (s *Selector) Resolve(features FeatureSet, mode SelectionMode) ([]*ModelHandle, error) {
	if _, ok := mode.(Ensemble); ok {
		return s.SelectEnsemble(features)
	}
	h, err := s.Select(features, mode)
	if err != nil {
		return nil, err
	}
	return []*ModelHandle{h}, nil
}

// Candidates exposes the ranked candidate list for introspection.
func (s *Selector) Candidates(features FeatureSet) []Candidate {
	return s.registry.FindCandidates(features.Names())
}

func (s *Selector) candidates(features FeatureSet) ([]Candidate, error) {
	candidates := s.registry.FindCandidates(features.Names())
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %d feature(s) supplied, %d active model(s), threshold %.2f",
			ErrNoCandidateModel, len(features), s.registry.Len(), s.registry.OverlapThreshold())
	}
	return candidates, nil
}
