package ml

import (
	"context"
	"sync"
)

// stubPredictor returns a fixed output and records every input vector.
type stubPredictor struct {
	mu    sync.Mutex
	out   RawOutput
	err   error
	calls [][]float64
}

func (s *stubPredictor) PredictRaw(ctx context.Context, x []float64) (RawOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]float64(nil), x...))
	return s.out, s.err
}

func newHandle(id, version string, kind Kind, cols ...string) *ModelHandle {
	return &ModelHandle{
		ID:             id,
		Kind:           kind,
		FeatureColumns: cols,
		TargetColumn:   "target",
		Version:        version,
		Predictor:      &stubPredictor{},
	}
}
